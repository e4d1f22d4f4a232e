package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cs/internal/cache"
	"github.com/Zuo-Peng/cs/internal/parse"
	"github.com/Zuo-Peng/cs/internal/scan"
	"github.com/Zuo-Peng/cs/internal/session"
)

func doctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify roots and cache, show what would be re-read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("=== Config ===")
			if a.cfg.Path == "" {
				fmt.Println("  File: (defaults)")
			} else {
				fmt.Printf("  File: %s\n", a.cfg.Path)
			}
			fmt.Printf("  Log:  %s\n", a.cfg.LogFile)

			readers := a.cfg.Readers()
			live := make(map[session.Source][]scan.Fingerprint, len(readers))

			for _, src := range session.Sources {
				fmt.Printf("\n=== %s ===\n", src.Label())
				rc, ok := readers[src]
				if !ok {
					fmt.Println("  disabled")
					continue
				}
				checkFile("History", rc.History)
				for _, root := range rc.Roots {
					checkDir("Root", root)
				}
				files := parse.Discover(src, rc.Roots)
				fmt.Printf("  Transcripts: %d\n", len(files))
				live[src] = a.loader.Tracker.Live(rc.History, files)
			}

			fmt.Println("\n=== Cache ===")
			fmt.Printf("  Path: %s\n", a.cfg.CachePath)
			snap, err := cache.Load(a.cfg.CachePath)
			switch {
			case errors.Is(err, cache.ErrNoCache):
				fmt.Println("  Status: NOT FOUND (built on first run)")
			case err != nil:
				fmt.Printf("  Status: UNREADABLE (%v)\n", err)
			default:
				if info, err := os.Stat(a.cfg.CachePath); err == nil {
					fmt.Printf("  Size: %s\n", humanize.Bytes(uint64(info.Size())))
				}
			}

			d := cache.Validate(snap, live)
			fmt.Printf("  Decision: %s\n", d.Kind)
			if snap != nil {
				for _, src := range d.Stale {
					ch := scan.Diff(snap.Partitions[src].Fingerprints, live[src])
					fmt.Printf("  %s: %s\n", src.Label(), ch)
				}
			}

			idx, rep, err := a.load()
			if err != nil {
				return err
			}
			a.flush()

			fmt.Println("\n=== Index ===")
			for _, src := range session.Sources {
				if _, ok := readers[src]; !ok {
					continue
				}
				fmt.Printf("  %-12s %s sessions, %s skipped lines\n", src.Label(),
					humanize.Comma(int64(len(idx.All(src)))), humanize.Comma(int64(idx.SkippedLines(src))))
			}
			for src, ferr := range rep.Failed {
				fmt.Printf("  %-12s FAILED: %v\n", src.Label(), ferr)
			}
			digest, err := idx.Digest()
			if err != nil {
				return err
			}
			fmt.Printf("  Digest: %s\n", digest)
			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}

func checkFile(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if info.IsDir() {
		fmt.Printf("  %s: %s (IS A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK, %s)\n", name, path, humanize.Bytes(uint64(info.Size())))
	}
}
