package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	crawlSeedsFile string
	crawlMaxSteps  int
	crawlNoCache   bool
)

// seedsFile is the YAML shape accepted by --seeds-file.
type seedsFile struct {
	Seeds []string `yaml:"seeds"`
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [url...]",
	Short: "Crawl seed URLs and reconcile extracted members",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		seeds := args
		if crawlSeedsFile != "" {
			fileSeeds, err := loadSeeds(crawlSeedsFile)
			if err != nil {
				return err
			}
			seeds = append(seeds, fileSeeds...)
		}
		if len(seeds) == 0 {
			return eris.New("at least one seed URL is required (args or --seeds-file)")
		}

		if crawlMaxSteps > 0 {
			cfg.Crawl.MaxSteps = crawlMaxSteps
		}
		if crawlNoCache {
			cfg.Crawl.NoCache = true
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Crawler.Run(ctx, seeds)
		if err != nil {
			return eris.Wrap(err, "crawl")
		}

		zap.L().Info("crawl summary",
			zap.Int("pages_visited", summary.PagesVisited),
			zap.Int("members_extracted", summary.MembersExtracted),
			zap.Int("members_updated", summary.MembersUpdated),
			zap.Int("errors", len(summary.Errors)),
		)
		for _, e := range summary.Errors {
			zap.L().Warn("crawl error",
				zap.String("url", e.URL),
				zap.String("stage", e.Stage),
				zap.String("error", e.Err),
			)
		}
		return nil
	},
}

func loadSeeds(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read seeds file")
	}
	var sf seedsFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, eris.Wrap(err, "parse seeds file")
	}
	return sf.Seeds, nil
}

func init() {
	crawlCmd.Flags().StringVar(&crawlSeedsFile, "seeds-file", "", "YAML file with a seeds: list")
	crawlCmd.Flags().IntVar(&crawlMaxSteps, "max-steps", 0, "override crawl step budget")
	crawlCmd.Flags().BoolVar(&crawlNoCache, "no-cache", false, "bypass the page cache")
	rootCmd.AddCommand(crawlCmd)
}
