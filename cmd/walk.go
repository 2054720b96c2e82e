package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tcp_snm/slotpager/internal/flux_errors"
	"github.com/tcp_snm/slotpager/internal/service/browse_service"
	"github.com/tcp_snm/slotpager/internal/service/pagination_service"
)

var (
	walkResource     string
	walkQuery        string
	walkItemsPerPage int
	walkPagesPerSlot int
	walkMaxPages     int
)

var walkCmd = &cobra.Command{
	Use:   "walk",
	Short: "print every page of a resource as json lines",
	Long: `walk loads the first slot of a resource and moves forward page by
page, crossing slots until the last page. Each page is printed as one json
line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, base, err := walkTarget(walkResource, walkQuery)
		if err != nil {
			return err
		}

		transport, release := initTransport(cmd.Context(), false)
		defer release()

		config := defaultConfig()
		if walkItemsPerPage > 0 {
			config.ItemsPerPage = walkItemsPerPage
		}
		if walkPagesPerSlot > 0 {
			config.PagesPerSlot = walkPagesPerSlot
		}

		p, err := pagination_service.New(
			transport,
			path,
			base,
			pagination_service.WithItemsPerPage(config.ItemsPerPage),
			pagination_service.WithPagesPerSlot(config.PagesPerSlot),
			pagination_service.WithResourceName(path),
		)
		if err != nil {
			return err
		}
		defer p.Close()

		return walk(cmd.Context(), p, cmd.OutOrStdout(), walkMaxPages)
	},
}

func init() {
	walkCmd.Flags().StringVarP(&walkResource, "resource", "r", browse_service.ResourceProblem, "resource name, or an upstream path such as /problem?groupId=1")
	walkCmd.Flags().StringVarP(&walkQuery, "query", "q", "", "base query sent with every slot fetch, e.g. groupId=1")
	walkCmd.Flags().IntVar(&walkItemsPerPage, "items-per-page", 0, "items per page (ITEMS_PER_PAGE when 0)")
	walkCmd.Flags().IntVar(&walkPagesPerSlot, "pages-per-slot", 0, "pages per slot (PAGES_PER_SLOT when 0)")
	walkCmd.Flags().IntVar(&walkMaxPages, "max-pages", 0, "stop after this many pages, 0 walks everything")
}

// walkTarget resolves a resource name or a raw upstream path into the path
// and base query of the walk.
func walkTarget(resource, query string) (string, string, error) {
	if path, ok := browse_service.DefaultResources[resource]; ok {
		return path, query, nil
	}
	if !strings.HasPrefix(resource, "/") {
		return "", "", fmt.Errorf("%w, unknown resource %q", flux_errors.ErrNotFound, resource)
	}
	path, base := pagination_service.SplitURL(resource)
	if query != "" {
		base = strings.Trim(base+"&"+query, "&")
	}
	return path, base, nil
}

type walkedPage struct {
	Page  int                         `json:"page"`
	Slot  int                         `json:"slot"`
	Items []pagination_service.Record `json:"items"`
}

// walk prints pages until the last one or until maxPages were written.
func walk(
	ctx context.Context,
	p *pagination_service.Paginator[pagination_service.Record],
	out io.Writer,
	maxPages int,
) error {
	if err := p.Initialize(ctx); err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	written := 0
	for {
		info := p.PageInfo()
		for page := info.First; page < info.First+info.Count; page++ {
			items, err := p.GotoPage(page)
			if err != nil {
				return err
			}
			if err = encoder.Encode(walkedPage{Page: page, Slot: p.State().CurrentSlot, Items: items}); err != nil {
				return fmt.Errorf("cannot write page %d, %w", page, err)
			}
			written++
			if maxPages > 0 && written >= maxPages {
				return nil
			}
		}

		if !p.SlotInfo().CanGotoNext {
			log.Infof("walked %d pages", written)
			return nil
		}
		if err := p.GotoSlot(ctx, pagination_service.SlotNext); err != nil {
			return err
		}
	}
}
