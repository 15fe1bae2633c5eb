package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/zaidhuda/wedding-gallery-sub000/internal/capture"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/client"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/client/reconcile"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/client/tokens"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/util"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

const usage = `usage: guest [global flags] <command> [flags]

commands:
  upload  -file photo.jpg -name NAME [-message TEXT] [-event TAG]
  edit    -id N -name NAME [-message TEXT]
  delete  -id N
  list    [-event TAG] [-pages N]
  mine

global flags:
`

func main() {
	global := flag.NewFlagSet("guest", flag.ExitOnError)
	baseURL := global.String("server", envOr("GALLERY_URL", "http://localhost:8080"), "gallery base URL")
	dbPath := global.String("db", envOr("GALLERY_TOKENS_DB", "gallery-tokens.db"), "local ownership token database")
	pass := global.String("pass", os.Getenv("GALLERY_PASS"), "guest pass")
	tz := global.String("tz", domain.DefaultTimeZone, "time zone of the event dates")
	level := global.String("log-level", "warn", "log level")
	global.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		global.PrintDefaults()
	}
	_ = global.Parse(os.Args[1:])
	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}
	util.InitLogger("guest", *level)

	if err := run(args[0], args[1:], *baseURL, *dbPath, *pass, *tz); err != nil {
		if errors.Is(err, errUnknownCommand) {
			global.Usage()
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "guest:", err)
		os.Exit(1)
	}
}

var errUnknownCommand = errors.New("unknown command")

func run(cmd string, rest []string, baseURL, dbPath, pass, tz string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := tokens.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	api := client.NewClient(baseURL)
	session := client.NewSession()
	session.SetPass(pass)
	g := &client.Guest{
		API:     api,
		Tokens:  store,
		Cache:   reconcile.New(reconcile.Config{Fetch: api.Fetcher()}),
		Session: session,
	}

	switch cmd {
	case "upload":
		return runUpload(ctx, g, tz, rest)
	case "edit":
		return runEdit(ctx, g, rest)
	case "delete":
		return runDelete(ctx, g, rest)
	case "list":
		return runList(ctx, g, store, rest)
	case "mine":
		return runMine(ctx, store)
	default:
		return errUnknownCommand
	}
}

func runUpload(ctx context.Context, g *client.Guest, tz string, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	file := fs.String("file", "", "photo to upload")
	name := fs.String("name", "", "your name")
	message := fs.String("message", "", "a message for the couple")
	event := fs.String("event", "", "event tag; overrides the capture date")
	_ = fs.Parse(args)
	if *file == "" || strings.TrimSpace(*name) == "" {
		return errors.New("upload requires -file and -name")
	}

	events, err := g.API.Events(ctx)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return err
	}
	catalog, err := domain.NewCatalog(events, loc)
	if err != nil {
		return err
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()
	asset, err := capture.Process(f, capture.Options{
		Catalog:       catalog,
		OverrideEvent: domain.EventTag(strings.TrimSpace(*event)),
	})
	if err != nil {
		var dateErr *capture.EventDateError
		if errors.As(err, &dateErr) {
			return fmt.Errorf("%w (pass -event to choose one)", err)
		}
		return err
	}
	slog.Debug("photo prepared", "format", asset.Format, "width", asset.Width, "height", asset.Height, "event", asset.EventTag)

	photo, err := g.Submit(ctx, asset, *name, *message)
	if err != nil {
		if errors.Is(err, client.ErrPassRequired) || client.IsUnauthorized(err) {
			return fmt.Errorf("%w: set -pass or GALLERY_PASS", err)
		}
		return err
	}
	status := "waiting for review"
	if photo.IsApproved {
		status = "published"
	}
	fmt.Printf("uploaded photo %d to %s (%s)\n", photo.ID, photo.EventTag, status)
	fmt.Printf("you can edit or delete it for the next hour from this device\n")
	return nil
}

func runEdit(ctx context.Context, g *client.Guest, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	id := fs.Int64("id", 0, "photo id")
	name := fs.String("name", "", "new name")
	message := fs.String("message", "", "new message")
	_ = fs.Parse(args)
	if *id <= 0 || strings.TrimSpace(*name) == "" {
		return errors.New("edit requires -id and -name")
	}
	res, err := g.Edit(ctx, *id, *name, *message)
	if err != nil {
		return err
	}
	fmt.Printf("photo %d now reads %q\n", res.ID, res.Name)
	return nil
}

func runDelete(ctx context.Context, g *client.Guest, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "photo id")
	_ = fs.Parse(args)
	if *id <= 0 {
		return errors.New("delete requires -id")
	}
	if err := g.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("photo %d deleted\n", *id)
	return nil
}

func runList(ctx context.Context, g *client.Guest, store *tokens.Store, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	event := fs.String("event", "", "event tag; empty lists every event")
	pages := fs.Int("pages", 1, "pages to load")
	_ = fs.Parse(args)

	tag := domain.EventTag(strings.TrimSpace(*event))
	more := true
	for i := 0; i < *pages && more; i++ {
		var err error
		if more, err = g.LoadMore(ctx, tag); err != nil {
			return err
		}
	}

	now := time.Now()
	items := g.Cache.Items(tag)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEVENT\tNAME\tMESSAGE\tEDITABLE")
	for _, it := range items {
		p := it.Photo
		entry, owned, err := store.TokenFor(ctx, p.ID)
		if err != nil {
			return err
		}
		editable := ""
		if owned {
			ok, err := client.CanModify(ctx, store, entry.Token, p.Timestamp, now)
			if err != nil {
				return err
			}
			if ok {
				editable = "yes"
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.EventTag, p.Name, p.Message, editable)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("showing %d photos", len(items))
	if more {
		fmt.Printf(", more with -pages %d", *pages+1)
	}
	fmt.Println()
	return nil
}

func runMine(ctx context.Context, store *tokens.Store) error {
	entries, err := store.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUPLOADED")
	for _, e := range entries {
		uploaded := e.SubmittedAt
		if uploaded.IsZero() {
			uploaded = e.AddedAt
		}
		fmt.Fprintf(w, "%d\t%s\n", e.PhotoID, uploaded.Local().Format(time.RFC822))
	}
	return w.Flush()
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
