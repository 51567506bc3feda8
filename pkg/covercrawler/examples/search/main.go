// Example: search every enabled source for a cover
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/sakuzeng/anime-cover-crawler/pkg/covercrawler"
)

func main() {
	client := covercrawler.NewClient()
	defer func() { _ = client.Close() }()

	fmt.Println("Searching covers for 'Sousou no Frieren'...")
	covers, err := client.Search(context.Background(), "Sousou no Frieren")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\nFound %d covers:\n\n", len(covers))
	for i, c := range covers {
		fmt.Printf("%d. %s\n", i+1, c.Title)
		fmt.Printf("   Source: %s\n", c.Source)
		fmt.Printf("   Image: %s (%dx%d, %.2f MB)\n", c.ImageURL, c.Width, c.Height, c.SizeMB)
		fmt.Printf("   Similarity: %d%%\n", c.Similarity)
		fmt.Println()
	}
}
