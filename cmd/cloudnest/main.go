// cloudnest is a command line client for a CloudNest backend.
//
// It drives the same engine a mobile UI would sit on: folder
// navigation, two-phase uploads, server-side compression, favourites,
// renames, deletes, search, and cached downloads.
//
// Usage:
//
//	cloudnest login -server https://api.example.com -token <jwt>
//	cloudnest ls [-folder id] [-filter all|favourites|folders|scanned|compressed] [-sort type|date|size]
//	cloudnest upload [-folder id] file...
//	cloudnest compress [-kind image|video|archive] [-format jpeg|...] [-quality low|medium|high] id...
//	cloudnest favorite <id>
//	cloudnest rename [-folder] <id> <newName>
//	cloudnest rm [-folder] <id>
//	cloudnest mkdir <name>
//	cloudnest search <query>
//	cloudnest download <id>
//	cloudnest stats
//	cloudnest ping
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/cloudnest/cloudnest-client/internal/compress"
	"github.com/cloudnest/cloudnest-client/internal/config"
	"github.com/cloudnest/cloudnest-client/internal/engine"
	"github.com/cloudnest/cloudnest-client/internal/listing"
	"github.com/cloudnest/cloudnest-client/internal/logging"
	"github.com/cloudnest/cloudnest-client/internal/upload"
	"github.com/cloudnest/cloudnest-client/pkg/api"
	"github.com/cloudnest/cloudnest-client/pkg/models"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		panic("logging init: " + err.Error())
	}
	defer logging.Sync()

	// login only needs the REST client, not the full engine
	if cmd == "login" {
		os.Exit(runLogin(args))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	eng, err := engine.New(ctx, *cfg, nil)
	if err != nil {
		logging.Fatal("engine init failed", zap.Error(err))
	}
	defer eng.Close()

	if tf, err := api.LoadToken(); err == nil {
		eng.SetAuthToken(tf.Token)
	}

	var code int
	switch cmd {
	case "ls":
		code = runLs(ctx, eng, args)
	case "upload":
		code = runUpload(ctx, eng, args)
	case "compress":
		code = runCompress(ctx, eng, args)
	case "favorite":
		code = runFavorite(ctx, eng, args)
	case "rename":
		code = runRename(ctx, eng, args)
	case "rm":
		code = runRm(ctx, eng, args)
	case "mkdir":
		code = runMkdir(ctx, eng, args)
	case "search":
		code = runSearch(ctx, eng, args)
	case "download":
		code = runDownload(ctx, eng, args)
	case "stats":
		code = runStats(eng)
	case "ping":
		code = runPing(ctx, eng)
	default:
		usage()
		code = 2
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: cloudnest <login|ls|upload|compress|favorite|rename|rm|mkdir|search|download|stats|ping> [args]")
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, "error:", err)
	return 1
}

func runLogin(args []string) int {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	server := fs.String("server", "", "API base URL")
	token := fs.String("token", "", "bearer token")
	user := fs.String("user", "", "username, informational")
	fs.Parse(args)

	if *server == "" || *token == "" {
		fmt.Fprintln(os.Stderr, "login requires -server and -token")
		return 2
	}

	tf := &api.TokenFile{Token: *token, Server: *server, Username: *user}
	if exp, err := api.TokenExpiry(*token); err == nil {
		tf.ExpiresAt = exp
	}
	if err := api.SaveToken(tf); err != nil {
		return fail(err)
	}
	fmt.Println("token saved")
	return 0
}

func openFolder(ctx context.Context, eng *engine.Engine, folderID string) error {
	if folderID == "" {
		return eng.RefreshCurrent(ctx)
	}
	// jump straight to the folder without walking the tree
	eng.Nav.Open(models.FolderEntry{ID: folderID, Name: folderID})
	return nil
}

func runLs(ctx context.Context, eng *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	folder := fs.String("folder", "", "folder id, empty for root")
	filter := fs.String("filter", "all", "all, favourites, folders, scanned, compressed")
	order := fs.String("sort", "type", "type, date, size")
	fs.Parse(args)

	if err := openFolder(ctx, eng, *folder); err != nil {
		return fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if *filter == "all" {
		for _, f := range eng.Listing.Folders() {
			fmt.Fprintf(w, "%s\t%s/\tfolder\t\n", f.ID, f.Name)
		}
	}
	items := eng.Listing.View(listing.CategoryFilter(*filter), listing.SortOrder(*order))
	for _, it := range items {
		if it.Kind == models.KindFolder {
			fmt.Fprintf(w, "%s\t%s/\tfolder\t\n", it.ID(), it.Name())
			continue
		}
		f := it.File
		marker := ""
		if f.Favourite {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s%s\t%s\t%d\n", f.ID, f.Name, marker, f.Category, f.Size)
	}
	return 0
}

func runUpload(ctx context.Context, eng *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	folder := fs.String("folder", "", "target folder id, empty for root")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "upload requires at least one file")
		return 2
	}

	if err := openFolder(ctx, eng, *folder); err != nil {
		return fail(err)
	}

	assets := make([]models.Asset, 0, fs.NArg())
	for _, path := range fs.Args() {
		info, err := os.Stat(path)
		if err != nil {
			return fail(err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		assets = append(assets, models.Asset{
			URI:      path,
			Name:     filepath.Base(path),
			MimeType: mimeType,
			Size:     info.Size(),
		})
	}

	results, err := eng.Upload(ctx, assets, func(s upload.Status) {
		if s.Phase == upload.PhaseBlobUpload && s.Percent > 0 {
			fmt.Fprintf(os.Stderr, "\r%s: %d%%", s.Asset.Name, s.Percent)
		}
		if s.Phase == upload.PhaseDone || s.Phase == upload.PhaseFailed {
			fmt.Fprintln(os.Stderr)
		}
	})
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%s: %v\n", r.Asset.Name, r.Err)
		} else {
			fmt.Printf("%s: uploaded as %s\n", r.Asset.Name, r.Entry.ID)
		}
	}
	if err != nil {
		return fail(err)
	}
	return 0
}

func runCompress(ctx context.Context, eng *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("compress", flag.ExitOnError)
	folder := fs.String("folder", "", "folder id the files live in")
	kind := fs.String("kind", "", "image, video, or archive; derived from the selection when empty")
	format := fs.String("format", "", "output format")
	quality := fs.String("quality", "medium", "low, medium, high (images)")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "compress requires at least one file id")
		return 2
	}

	if err := openFolder(ctx, eng, *folder); err != nil {
		return fail(err)
	}

	byID := map[string]models.FileEntry{}
	for _, f := range eng.Listing.Files() {
		byID[f.ID] = f
	}
	for _, f := range eng.Listing.Scanned() {
		byID[f.ID] = f
	}
	var files []models.FileEntry
	for _, id := range fs.Args() {
		f, ok := byID[id]
		if !ok {
			return fail(fmt.Errorf("file %s not in the current folder", id))
		}
		files = append(files, f)
	}

	offered := compress.DeriveKinds(files)
	chosen := compress.Kind(*kind)
	if *kind == "" {
		chosen = offered[0]
	} else if !kindOffered(offered, chosen) {
		return fail(fmt.Errorf("kind %s not available for this selection, offered: %v", chosen, offered))
	}

	settings, err := buildSettings(chosen, *format, *quality)
	if err != nil {
		return fail(err)
	}

	outcomes, err := eng.CompressFiles(ctx, files, settings)
	for _, out := range outcomes {
		if out.Err != nil {
			fmt.Printf("%s: %v\n", out.File.Name, out.Err)
		} else {
			fmt.Printf("%s: compressed\n", out.File.Name)
		}
	}
	if err != nil {
		return fail(err)
	}
	return 0
}

func kindOffered(offered []compress.Kind, k compress.Kind) bool {
	for _, o := range offered {
		if o == k {
			return true
		}
	}
	return false
}

func buildSettings(kind compress.Kind, format, quality string) (compress.Settings, error) {
	switch kind {
	case compress.KindImage:
		q := compress.QualityMedium
		switch quality {
		case "low":
			q = compress.QualityLow
		case "high":
			q = compress.QualityHigh
		}
		if format == "" {
			format = "jpeg"
		}
		return compress.ImageSettings(q, format)
	case compress.KindVideo:
		if format == "" {
			format = "mp4"
		}
		return compress.VideoSettings(format)
	default:
		if format == "" {
			format = "zip"
		}
		return compress.ArchiveSettings(format)
	}
}

func runFavorite(ctx context.Context, eng *engine.Engine, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "favorite requires exactly one file id")
		return 2
	}
	if err := eng.ToggleFavourite(ctx, args[0]); err != nil {
		return fail(err)
	}
	return 0
}

func runRename(ctx context.Context, eng *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("rename", flag.ExitOnError)
	isFolder := fs.Bool("folder", false, "the id names a folder")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "rename requires <id> <newName>")
		return 2
	}
	id, newName := fs.Arg(0), fs.Arg(1)

	item := models.FileItem(&models.FileEntry{ID: id, Name: id})
	if *isFolder {
		item = models.FolderItem(&models.FolderEntry{ID: id, Name: id})
	}
	if err := eng.Rename(ctx, item, newName); err != nil {
		return fail(err)
	}
	return 0
}

func runRm(ctx context.Context, eng *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	isFolder := fs.Bool("folder", false, "the id names a folder")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "rm requires exactly one id")
		return 2
	}
	id := fs.Arg(0)

	item := models.FileItem(&models.FileEntry{ID: id, Name: id})
	if *isFolder {
		item = models.FolderItem(&models.FolderEntry{ID: id, Name: id})
	}
	if err := eng.Delete(ctx, item); err != nil {
		return fail(err)
	}
	return 0
}

func runMkdir(ctx context.Context, eng *engine.Engine, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "mkdir requires exactly one name")
		return 2
	}
	folder, err := eng.CreateFolder(ctx, args[0])
	if err != nil {
		return fail(err)
	}
	fmt.Println(folder.ID)
	return 0
}

func runSearch(ctx context.Context, eng *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	order := fs.String("sort", "type", "type, date, size")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "search requires exactly one query")
		return 2
	}
	results, err := eng.Search(ctx, fs.Arg(0))
	if err != nil {
		return fail(err)
	}
	listing.Sort(results, listing.SortOrder(*order))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	for _, f := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", f.ID, f.Name, f.Category, f.Size)
	}
	return 0
}

func runDownload(ctx context.Context, eng *engine.Engine, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "download requires exactly one file id")
		return 2
	}
	path, err := eng.Download(ctx, args[0])
	if err != nil {
		return fail(err)
	}
	fmt.Println(path)
	return 0
}

func runStats(eng *engine.Engine) int {
	s := &eng.Stats
	size, maxSize, count := eng.Content.Stats()
	fmt.Printf("refreshes:        %d\n", s.Refreshes.Load())
	fmt.Printf("uploads:          %d (%d failed)\n", s.Uploads.Load(), s.UploadFailures.Load())
	fmt.Printf("compressions:     %d\n", s.Compressions.Load())
	fmt.Printf("mutations:        %d\n", s.Mutations.Load())
	fmt.Printf("downloads:        %d (hits %d, misses %d)\n", s.Downloads.Load(), s.CacheHits.Load(), s.CacheMisses.Load())
	fmt.Printf("bytes downloaded: %d\n", s.BytesDownloaded.Load())
	fmt.Printf("content cache:    %d/%d bytes, %d entries\n", size, maxSize, count)
	return 0
}

func runPing(ctx context.Context, eng *engine.Engine) int {
	if err := eng.Client().Ping(ctx); err != nil {
		fmt.Println("offline:", err)
		return 1
	}
	fmt.Println("online")
	return 0
}
