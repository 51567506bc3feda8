package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/sakuzeng/anime-cover-crawler/internal/config"
	"github.com/sakuzeng/anime-cover-crawler/internal/crawler"
	"github.com/sakuzeng/anime-cover-crawler/internal/downloader"
	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/quality"
	"github.com/sakuzeng/anime-cover-crawler/internal/resolver"
	"github.com/sakuzeng/anime-cover-crawler/internal/scraper"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
	"github.com/sakuzeng/anime-cover-crawler/internal/version"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true)
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00CED1")).Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0"))
	missStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#32CD32")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4757")).Bold(true)
	exactBadge   = lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#FFD700")).Padding(0, 1)
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF69B4")).Bold(true)
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	debugFlag := flag.Bool("debug", false, "enable debug mode")
	helpFlag := flag.Bool("help", false, "show help message")
	altHelpFlag := flag.Bool("h", false, "show help message")
	configFlag := flag.String("config", "", "path to a config file")
	sourcesFlag := flag.String("sources", "", "comma separated list of sources to query")
	outFlag := flag.String("out", "", "directory for downloaded covers")
	allFlag := flag.Bool("all", false, "download every candidate")
	topFlag := flag.Bool("top", false, "download only the best candidate")
	pickFlag := flag.Bool("pick", false, "pick the candidate to download")
	perfFlag := flag.Bool("perf", false, "print a timing report")

	flag.Parse()

	if *versionFlag || version.HasVersionArg() {
		version.ShowVersion()
		return
	}

	if *helpFlag || *altHelpFlag {
		util.Helper()
		return
	}

	util.SetDebugMode(*debugFlag)
	util.InitLogger()
	util.Debug("Starting", "version", version.String())

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalln(util.ErrorHandler(err))
	}
	if *outFlag != "" {
		cfg.Download.Dir = *outFlag
	}

	ids, err := models.ParseSourceList(*sourcesFlag)
	if err != nil {
		log.Fatalln(util.ErrorHandler(err))
	}

	animeName, err := util.GetAnimeName()
	if err != nil {
		log.Fatalln(util.ErrorHandler(err))
	}

	var watch *util.Stopwatch
	if *perfFlag {
		watch = util.NewStopwatch()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	probeClient := util.NewSession(cfg.HTTP.Timeout)
	defer util.CloseSession(probeClient)

	prober := quality.NewProber(probeClient,
		quality.WithUserAgent(cfg.HTTP.UserAgent),
		quality.WithStopwatch(watch))

	var (
		eventsMu sync.Mutex
		events   []crawler.Event
	)
	c := crawler.New(cfg, scraper.NewRegistryFromConfig(cfg, watch), resolver.New(prober),
		crawler.WithStopwatch(watch),
		crawler.WithObserver(func(ev crawler.Event) {
			if ev.Stage == crawler.StageFetching {
				util.Debugf("[%d/%d] querying %s", ev.Index+1, ev.Total, ev.Source.DisplayName())
				return
			}
			eventsMu.Lock()
			events = append(events, ev)
			eventsMu.Unlock()
		}))
	defer func() { _ = c.Close() }()

	var (
		results   models.RankedResultSet
		searchErr error
	)
	_ = spinner.New().
		Title(fmt.Sprintf("Searching covers for %q...", animeName)).
		Type(spinner.Dots).
		Action(func() {
			results, searchErr = c.ResolveAll(ctx, animeName, ids)
		}).
		Run()
	if searchErr != nil {
		log.Fatalln(util.ErrorHandler(searchErr))
	}

	printSourceReport(events)

	if results.IsEmpty() {
		fmt.Println(missStyle.Render("Nothing found for " + animeName))
		printPerf(watch)
		return
	}

	ranked := results.SortedByQuality()
	printCandidates(ranked)

	chosen, err := chooseCandidates(ranked, *allFlag, *topFlag, *pickFlag)
	if err != nil {
		log.Fatalln(util.ErrorHandler(err))
	}

	d := downloader.New(cfg.Download, probeClient, cfg.HTTP.UserAgent)
	downloaded, err := d.DownloadAllWithProgress(ctx, chosen, animeName)
	if err != nil {
		util.Warn("Progress display unavailable, downloading without it", "error", err)
		downloaded = retryFailed(ctx, d, downloaded, animeName)
	}

	printDownloads(d, downloaded)
	printPerf(watch)
}

// chooseCandidates applies the -all/-top/-pick flags, asking when none is set
func chooseCandidates(ranked []models.Candidate, all, top, pick bool) ([]models.Candidate, error) {
	switch {
	case pick:
		idx, err := fuzzyfinder.Find(
			ranked,
			func(i int) string {
				return fmt.Sprintf("%s | %s | %s", ranked[i].Source.DisplayName(), ranked[i].Title, ranked[i].Profile.Resolution())
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to select a cover: %w", err)
		}
		return ranked[idx : idx+1], nil
	case all:
		return ranked, nil
	case top || len(ranked) == 1:
		return ranked[:1], nil
	}

	downloadAll := false
	err := huh.NewConfirm().
		Title("Download the cover from every source?").
		Description("Otherwise only the highest quality cover is saved").
		Affirmative("All").
		Negative("Best only").
		Value(&downloadAll).
		Run()
	if err != nil {
		util.Debug("Confirm prompt failed, keeping the best cover", "error", err)
	}
	if downloadAll {
		return ranked, nil
	}
	return ranked[:1], nil
}

// retryFailed downloads whatever the progress run did not finish
func retryFailed(ctx context.Context, d *downloader.Downloader, results []downloader.Result, label string) []downloader.Result {
	for i, r := range results {
		if r.OK {
			continue
		}
		path, ok := d.Download(ctx, r.Candidate.ImageURL, label, r.Candidate.Source)
		results[i].Path, results[i].OK = path, ok
	}
	return results
}

func printSourceReport(events []crawler.Event) {
	for _, ev := range events {
		name := sourceStyle.Render(fmt.Sprintf("%-14s", ev.Source.DisplayName()))
		switch {
		case ev.Stage == crawler.StageSkipped:
			fmt.Println(name, missStyle.Render("skipped (time budget exhausted)"))
		case ev.Candidate == nil:
			fmt.Println(name, missStyle.Render("no matching cover"))
		default:
			fmt.Println(name, okStyle.Render("✓"), ev.Candidate.Title)
		}
	}
	fmt.Println()
}

func printCandidates(ranked []models.Candidate) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("🖼  %d cover(s), best quality first", len(ranked))))
	for i, c := range ranked {
		line := fmt.Sprintf("%2d. %s %s", i+1, sourceStyle.Render(c.Source.DisplayName()), c.Title)
		if c.ExactMatch {
			line += " " + exactBadge.Render("exact")
		}
		fmt.Println(line)
		fmt.Println(detailStyle.Render(fmt.Sprintf("    %s  %.2f MB  similarity %d%%  score %.0f",
			c.Profile.Resolution(), c.Profile.SizeMB, c.SimilarityScore, c.QualityScore)))
		fmt.Println(detailStyle.Render("    " + c.ImageURL))
	}
	fmt.Println()
}

func printDownloads(d *downloader.Downloader, results []downloader.Result) {
	saved := 0
	for _, r := range results {
		if !r.OK {
			fmt.Println(failStyle.Render("✗ " + r.Candidate.Source.DisplayName() + ": download failed"))
			continue
		}
		saved++
		info, err := downloader.FileInfo(r.Path)
		if err != nil {
			fmt.Println(okStyle.Render("✓ " + r.Path))
			continue
		}
		fmt.Println(okStyle.Render("✓ "+r.Path), detailStyle.Render(fmt.Sprintf("%s, %.2f MB", info.Resolution(), info.SizeMB)))
	}
	fmt.Println(summaryStyle.Render(fmt.Sprintf("Saved %d/%d cover(s) to %s", saved, len(results), d.Dir())))
}

func printPerf(watch *util.Stopwatch) {
	if watch != nil {
		fmt.Print(watch.Report())
	}
}
