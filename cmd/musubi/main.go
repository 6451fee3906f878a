package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayane-dev/musubi/internal/config"
	"github.com/ayane-dev/musubi/internal/graph"
	"github.com/ayane-dev/musubi/internal/identity"
	"github.com/ayane-dev/musubi/internal/logger"
	"github.com/ayane-dev/musubi/internal/session"
	"github.com/ayane-dev/musubi/internal/sources"
	"github.com/ayane-dev/musubi/internal/storage"
	"github.com/ayane-dev/musubi/internal/tagdb"
)

const usage = `Usage: musubi <command> [arguments]

Commands:
  normalize <url>...  Parse URLs and print their typed, normalized forms
  walk <url>          Walk the related-source graph starting from a URL
  artist <url>        Walk from a URL and resolve the artist to a tag
`

func main() {
	if len(os.Args) < 3 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "normalize":
		err = app.runNormalize(args)
	case "walk":
		err = app.runWalk(ctx, args[0])
	case "artist":
		err = app.runArtist(ctx, args[0])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

type app struct {
	cfg      *config.Config
	log      logger.Logger
	resolver *sources.Resolver
	walker   *graph.Walker
	cache    *storage.Cache
	tags     *tagdb.SQLiteStore
}

func newApp(cfg *config.Config) (*app, error) {
	logg := logger.New(cfg.LogLevel)

	var opts []session.Option
	var cache *storage.Cache
	if cfg.RedisAddr != "" {
		var err error
		cache, err = storage.NewCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SnapshotTTL, logg)
		if err != nil {
			return nil, fmt.Errorf("connecting to Redis cache: %w", err)
		}
		opts = append(opts, session.WithCache(cache))
	}
	if len(cfg.HeadlessHosts) > 0 {
		opts = append(opts, session.WithHeadless(session.NewHeadlessFetcher(logg, cfg.HeadlessNoSandbox)))
	}
	sess := session.NewHTTPSession(cfg, logg, opts...)

	env := &sources.Env{Fetcher: sess, Logger: logg}
	registry := sources.MustRegistry(sources.DefaultParsers(env)...)
	resolver := sources.NewResolver(registry, env)
	env.Resolve = resolver.Parse

	return &app{
		cfg:      cfg,
		log:      logg,
		resolver: resolver,
		walker:   graph.NewWalker(logg, nil),
		cache:    cache,
	}, nil
}

func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.tags != nil {
		a.tags.Close()
	}
}

// openTags is deferred until a command needs the tag database so that
// parse and walk runs never touch (or create) the SQLite file.
func (a *app) openTags() (tagdb.Store, error) {
	if a.tags == nil {
		tags, err := tagdb.Open(a.cfg.TagDBPath, a.log)
		if err != nil {
			return nil, err
		}
		a.tags = tags
	}
	return a.tags, nil
}

type parseResult struct {
	URL        string `json:"url"`
	Type       string `json:"type,omitempty"`
	Site       string `json:"site,omitempty"`
	Normalized string `json:"normalized,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (a *app) runNormalize(urls []string) error {
	results := make([]parseResult, 0, len(urls))
	for _, raw := range urls {
		res := parseResult{URL: raw}
		src, err := a.resolver.Parse(raw)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Type = fmt.Sprintf("%T", src)
			res.Site = src.Site()
			res.Normalized = src.String()
		}
		results = append(results, res)
	}
	return printJSON(results)
}

func (a *app) runWalk(ctx context.Context, raw string) error {
	seed, err := a.resolver.Parse(raw)
	if err != nil {
		return err
	}
	nodes, err := a.walker.Walk(ctx, seed)
	if err != nil {
		return err
	}
	urls := make([]string, 0, len(nodes))
	for _, n := range nodes {
		urls = append(urls, n.String())
	}
	return printJSON(urls)
}

type artistResult struct {
	Tag        *tagdb.TagRecord `json:"tag"`
	TagCreated bool             `json:"tag_created"`
	WalkedURLs []string         `json:"walked_urls"`
}

func (a *app) runArtist(ctx context.Context, raw string) error {
	seed, err := a.resolver.Parse(raw)
	if err != nil {
		return err
	}
	nodes, err := a.walker.Walk(ctx, seed)
	if err != nil {
		return err
	}

	tags, err := a.openTags()
	if err != nil {
		return fmt.Errorf("opening tag database: %w", err)
	}
	ident := identity.NewResolver(tags, nil, a.log)
	tag, created, err := ident.Resolve(ctx, nodes)
	if err != nil {
		return err
	}

	out := artistResult{Tag: tag, TagCreated: created}
	for _, n := range nodes {
		out.WalkedURLs = append(out.WalkedURLs, n.String())
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
