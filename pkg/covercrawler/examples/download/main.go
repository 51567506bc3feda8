// Example: download the best AniList or Bangumi cover
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/sakuzeng/anime-cover-crawler/pkg/covercrawler"
	"github.com/sakuzeng/anime-cover-crawler/pkg/covercrawler/types"
)

func main() {
	client := covercrawler.NewClient()
	defer func() { _ = client.Close() }()
	client.SetOutputDir("covers")

	covers, err := client.Search(context.Background(), "Cowboy Bebop", types.SourceAniList, types.SourceBangumi)
	if err != nil {
		log.Fatal(err)
	}
	if len(covers) == 0 {
		fmt.Println("Nothing found")
		return
	}

	path, err := client.Download(context.Background(), covers[0], "Cowboy Bebop")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Saved %s cover to %s\n", covers[0].Source, path)
}
