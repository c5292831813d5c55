// Command generate runs one recommendation pass for an owner and prints
// the ranked outfits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/fitscore/internal/adapters/repository"
	app "github.com/okian/fitscore/internal/app"
	"github.com/okian/fitscore/internal/config"
	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/internal/domain/recommend"
	"github.com/okian/fitscore/pkg/logger"
)

const defaultTop = 10

type options struct {
	owner     string
	itemsFile string
	event     string
	minScore  float64
	top       int
}

// itemFile is the JSON shape accepted by -items.
type itemFile struct {
	Items []struct {
		ID       string `json:"id"`
		ImageRef string `json:"image_ref"`
		Category string `json:"category"`
	} `json:"items"`
}

func main() {
	var o options
	flag.StringVar(&o.owner, "owner", "", "Owner whose recommendations are generated (required)")
	flag.StringVar(&o.itemsFile, "items", "", "JSON file of items to store for the owner before generating")
	flag.StringVar(&o.event, "event", "", "Rank by this event instead of the best score")
	flag.Float64Var(&o.minScore, "min-score", 0, "Minimum score to print")
	flag.IntVar(&o.top, "top", defaultTop, "Number of outfits to print (0 prints all)")
	flag.Parse()

	if o.owner == "" {
		fmt.Fprintln(os.Stderr, "generate: -owner is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, o, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "generate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, o options, out io.Writer) error {
	p, err := app.NewPipeline(ctx, cfg, logger.Get())
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if o.itemsFile != "" {
		items, err := readItems(o.itemsFile, o.owner)
		if err != nil {
			return err
		}
		if err := p.Store.PutItems(ctx, items...); err != nil {
			return fmt.Errorf("store items: %w", err)
		}
	}

	outcome, err := p.Generator.Run(ctx, o.owner)
	if err != nil {
		return err
	}
	if errors.Is(outcome.Err, recommend.ErrInsufficientWardrobe) {
		fmt.Fprintf(out, "%s: wardrobe cannot form an outfit (needs a top or all-wear plus shoes)\n", o.owner)
		return nil
	}

	recs, err := p.Store.Recommendations(ctx, o.owner)
	if err != nil {
		return err
	}
	var matches []repository.Match
	if o.event == "" {
		matches = repository.FilterByBest(recs, o.minScore)
	} else if matches, err = repository.FilterByEvent(recs, o.event, o.minScore); err != nil {
		return err
	}
	if o.top > 0 && len(matches) > o.top {
		matches = matches[:o.top]
	}

	fmt.Fprintf(out, "owner %s: %d candidates, %d skipped, %d stored in %s (weights %s)\n",
		o.owner, outcome.Candidates, outcome.Skipped, outcome.Records, outcome.Duration.Round(time.Millisecond), p.Weights)
	return printMatches(out, o.event, matches)
}

func readItems(path, owner string) ([]model.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var f itemFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse items %s: %w", path, err)
	}
	items := make([]model.Item, 0, len(f.Items))
	for _, it := range f.Items {
		items = append(items, model.Item{ID: it.ID, ImageRef: it.ImageRef, Category: model.Category(it.Category), OwnerID: owner})
	}
	return items, nil
}

func printMatches(out io.Writer, event string, matches []repository.Match) error {
	scoreCol := "BEST"
	if event != "" {
		scoreCol = strings.ToUpper(event)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RANK\t%s\tTOP EVENT\tOUTFIT\n", scoreCol)
	for i, m := range matches {
		fmt.Fprintf(tw, "%d\t%.3f\t%s\t%s\n", i+1, m.Score, topEvent(m.Recommendation), strings.Join(m.Recommendation.Outfit, ", "))
	}
	return tw.Flush()
}

// topEvent names the highest scoring event, first label wins ties.
func topEvent(r model.Recommendation) string {
	best, name := -1.0, ""
	for _, label := range model.EventLabels {
		if s, ok := r.Score(label); ok && s > best {
			best, name = s, string(label)
		}
	}
	return name
}
