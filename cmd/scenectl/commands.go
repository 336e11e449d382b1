package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	cli "github.com/urfave/cli/v3"

	"github.com/scenelocate/scenelocate-agent/internal/export"
	"github.com/scenelocate/scenelocate-agent/internal/finder"
	"github.com/scenelocate/scenelocate-agent/internal/library"
	"github.com/scenelocate/scenelocate-agent/internal/media"
	"github.com/scenelocate/scenelocate-agent/internal/player"
	"github.com/scenelocate/scenelocate-agent/internal/search"
	"github.com/scenelocate/scenelocate-agent/internal/seek"
	"github.com/scenelocate/scenelocate-agent/internal/timestamp"
)

func playerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "mpv-socket",
			Usage: "mpv JSON IPC socket to control",
		},
		&cli.StringFlag{
			Name:  "mpv-path",
			Usage: "mpv binary to start when no player is listening",
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Upload a video with a scene description and seek the player to the match",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "video",
				Aliases:  []string{"v"},
				Usage:    "Video file to search",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "scene",
				Aliases:  []string{"s"},
				Usage:    "Free-text description of the scene",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "no-wait",
				Usage: "Print the match without waiting for the player to seek",
			},
		}, playerFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			lib := library.NewService(e.repo, media.NewFFprobe(e.logger), e.cfg.LibraryMaxEntries(), e.logger)
			video, _, err := lib.AddVideo(ctx, cmd.String("video"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			controller := player.NewController(e.cfg.MPVSocket(), e.cfg.MPVPath(), e.logger)
			defer controller.Close()
			reconciler := seek.NewReconciler(seek.Config{
				MaxAttempts: e.cfg.SeekMaxAttempts(),
				RetryDelay:  e.cfg.SeekRetryDelay(),
				Logger:      e.logger,
				OnResolve:   finder.ObserveSeek,
			})

			svc := finder.NewService(finder.Options{
				Library:    lib,
				History:    library.NewHistory(e.repo),
				Search:     search.NewHTTPClient(e.cfg.BackendURL(), e.cfg.SearchTimeout(), e.logger),
				Player:     controller,
				Reconciler: reconciler,
				Notifier:   printNotifier(cmd),
				Logger:     e.logger,
			})

			out, err := svc.Search(ctx, video.ID, cmd.String("scene"))
			if search.IsNotFound(err) {
				return cli.Exit("scene not found in this clip, try a different description", 3)
			}
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			w := stdout(cmd)
			fmt.Fprintf(w, "scene:      %s (%ds)\n", timestamp.Format(out.Target), out.Target)
			if out.Result.EndTimestampRaw != "" {
				fmt.Fprintf(w, "ends:       %s\n", out.Result.EndTimestampRaw)
			}
			fmt.Fprintf(w, "similarity: %.3f\n", out.Result.Similarity)
			if out.Result.BestCategory != "" {
				fmt.Fprintf(w, "category:   %s (%.3f)\n", out.Result.BestCategory, out.Result.CategoryScore)
			}

			if cmd.Bool("no-wait") {
				return nil
			}

			waitCtx, cancel := context.WithTimeout(ctx, reconciler.Timeout()+5*time.Second)
			defer cancel()
			if err := out.WaitSeek(waitCtx); err != nil {
				return cli.Exit("seek: "+err.Error(), 1)
			}
			return nil
		},
	}
}

func jumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "jump",
		Usage:     "Seek the running player to a timestamp",
		ArgsUsage: "HH:MM:SS",
		Flags:     playerFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return cli.Exit("usage: scenectl jump HH:MM:SS", 2)
			}
			target, err := timestamp.Parse(cmd.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd)

			controller := player.NewController(cfg.MPVSocket(), "", logger)
			defer controller.Close()
			reconciler := seek.NewReconciler(seek.Config{
				MaxAttempts: cfg.SeekMaxAttempts(),
				RetryDelay:  cfg.SeekRetryDelay(),
				Logger:      logger,
			})

			if err := reconciler.Seek(ctx, controller.Handle(), target); err != nil {
				return cli.Exit("seek: "+err.Error(), 1)
			}
			fmt.Fprintf(stdout(cmd), "jumped to %s\n", timestamp.Format(target))
			return nil
		},
	}
}

func pingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the scene search backend answers",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			client := search.NewHTTPClient(cfg.BackendURL(), cfg.SearchTimeout(), newLogger(cmd))

			start := time.Now()
			if err := client.Ping(ctx); err != nil {
				return cli.Exit(fmt.Sprintf("%s unreachable: %v", cfg.BackendURL(), err), 1)
			}
			fmt.Fprintf(stdout(cmd), "%s reachable in %s\n", cfg.BackendURL(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func libraryCommand() *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "Manage saved videos",
		Commands: []*cli.Command{
			{
				Name:  "ls",
				Usage: "List saved videos, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Only names containing this text"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					e, err := openEnv(cmd)
					if err != nil {
						return err
					}
					defer e.Close()

					videos, err := e.repo.ListVideos(ctx, cmd.String("query"))
					if err != nil {
						return err
					}
					if len(videos) == 0 {
						fmt.Fprintln(stdout(cmd), "no saved videos")
						return nil
					}

					tw := tabwriter.NewWriter(stdout(cmd), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tSIZE\tDURATION\tADDED")
					for _, v := range videos {
						duration := "-"
						if v.HasDuration() {
							duration = timestamp.Format(int(v.DurationSeconds))
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
							v.ID, v.Name, humanize.Bytes(uint64(v.Size)), duration, humanize.Time(v.CreatedAt))
					}
					return tw.Flush()
				},
			},
			{
				Name:      "add",
				Usage:     "Save video files",
				ArgsUsage: "FILE...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() == 0 {
						return cli.Exit("usage: scenectl library add FILE...", 2)
					}
					e, err := openEnv(cmd)
					if err != nil {
						return err
					}
					defer e.Close()

					lib := library.NewService(e.repo, media.NewFFprobe(e.logger), e.cfg.LibraryMaxEntries(), e.logger)
					var failed int
					for _, path := range cmd.Args().Slice() {
						v, created, err := lib.AddVideo(ctx, path)
						if err != nil {
							fmt.Fprintf(stderr(cmd), "%s: %v\n", path, err)
							failed++
							continue
						}
						state := "saved"
						if !created {
							state = "already saved"
						}
						fmt.Fprintf(stdout(cmd), "%s  %s (%s)\n", v.ID, v.Name, state)
					}
					if failed > 0 {
						return cli.Exit(fmt.Sprintf("%d of %d files not saved", failed, cmd.NArg()), 1)
					}
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "Remove saved videos by id",
				ArgsUsage: "ID...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					e, err := openEnv(cmd)
					if err != nil {
						return err
					}
					defer e.Close()

					lib := library.NewService(e.repo, nil, 0, e.logger)
					n, err := lib.RemoveVideos(ctx, cmd.Args().Slice())
					if errors.Is(err, library.ErrNoSelection) {
						return cli.Exit("usage: scenectl library rm ID...", 2)
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(stdout(cmd), "removed %d\n", n)
					return nil
				},
			},
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past searches",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "video", Usage: "Only searches of this video id"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum entries", Value: 20},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			records, err := library.NewHistory(e.repo).List(ctx, cmd.String("video"), int(cmd.Int("limit")))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(stdout(cmd), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tSTATUS\tSCENE\tDESCRIPTION\tDETAIL")
			for _, r := range records {
				scene := "-"
				if r.TargetSeconds != nil {
					scene = timestamp.Format(*r.TargetSeconds)
				}
				detail := r.Error
				if detail == "" && r.Similarity > 0 {
					detail = "similarity " + strconv.FormatFloat(r.Similarity, 'f', 3, 64)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					humanize.Time(r.CreatedAt), r.Status, scene, r.Description, detail)
			}
			return tw.Flush()
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write found scenes as an EDL",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "video", Usage: "Only scenes of this video id"},
			&cli.StringFlag{Name: "out", Usage: "Output directory", Value: "."},
			&cli.StringFlag{Name: "title", Usage: "EDL title", Value: "scenes"},
			&cli.Float64Flag{Name: "fps", Usage: "Timeline frame rate", Value: export.DefaultFrameRate},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			records, err := e.repo.ListSearches(ctx, cmd.String("video"), 1000)
			if err != nil {
				return err
			}
			// oldest first on the timeline
			for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
				records[i], records[j] = records[j], records[i]
			}

			videos, err := e.repo.ListVideos(ctx, "")
			if err != nil {
				return err
			}
			byID := make(map[string]*library.Video, len(videos))
			for _, v := range videos {
				byID[v.ID] = v
			}

			clips, unresolved := export.ClipsFromSearches(records, byID)
			if len(clips) == 0 {
				return cli.Exit("no found scenes to export", 1)
			}

			title := strings.TrimSpace(cmd.String("title"))
			path, err := export.WriteFile(cmd.String("out"), title, export.GenerateEDL(clips, title, cmd.Float64("fps")))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			abs, _ := filepath.Abs(path)
			fmt.Fprintf(stdout(cmd), "wrote %d clips to %s\n", len(clips), abs)
			if len(unresolved) > 0 {
				fmt.Fprintf(stderr(cmd), "skipped %d searches whose video was removed\n", len(unresolved))
			}
			return nil
		},
	}
}

func formatCommand() *cli.Command {
	return &cli.Command{
		Name:      "format",
		Usage:     "Render seconds as HH:MM:SS",
		ArgsUsage: "SECONDS",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			n, err := strconv.Atoi(cmd.Args().First())
			if err != nil || n < 0 || cmd.NArg() != 1 {
				return cli.Exit("usage: scenectl format SECONDS", 2)
			}
			fmt.Fprintln(stdout(cmd), timestamp.Format(n))
			return nil
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Convert an HH:MM:SS timestamp to seconds",
		ArgsUsage: "HH:MM:SS",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return cli.Exit("usage: scenectl parse HH:MM:SS", 2)
			}
			n, err := timestamp.Parse(cmd.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			fmt.Fprintln(stdout(cmd), n)
			return nil
		},
	}
}

// printNotifier shows finder notices on stderr.
func printNotifier(cmd *cli.Command) finder.Notifier {
	return finder.NotifierFunc(func(n finder.Notice) {
		fmt.Fprintf(stderr(cmd), "[%s] %s\n", n.Level, n.Message)
	})
}
