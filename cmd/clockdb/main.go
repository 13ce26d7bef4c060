package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bietkhonhungvandi212/clockdb/internal/logging"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/buffer"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/disk"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/heap"
	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "path to an ini config file")
	flag.Parse()

	opts := util.DefaultOptions()
	if *configPath != "" {
		loaded, err := util.LoadOptions(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "clockdb: %v\n", err)
			os.Exit(1)
		}
		opts = loaded
	}
	logging.SetLevel(opts.LogLevel)

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "clockdb: %v\n", err)
		os.Exit(1)
	}
}

func run(opts util.Options) error {
	var dm disk.Manager
	if opts.InMemory {
		dm = disk.NewMemManager()
	} else {
		fm, err := disk.NewFileManager(opts.Path, opts.SyncWrites)
		if err != nil {
			return err
		}
		dm = fm
	}
	defer dm.Close()

	bm := buffer.NewBufMgr(dm, opts.PoolSize)

	hf, err := heap.Open(bm, dm, "demo")
	if err != nil {
		return err
	}
	defer hf.Close()

	rid, err := hf.InsertRecord([]byte("hello, heap file"))
	if err != nil {
		return err
	}
	rec, err := hf.SelectRecord(rid)
	if err != nil {
		return err
	}
	count, err := hf.RecCount()
	if err != nil {
		return err
	}

	fmt.Printf("inserted %q at (page %d, slot %d); file holds %d record(s)\n",
		rec, rid.PageNo, rid.SlotNo, count)
	fmt.Printf("pool: %d frames, %d unpinned\n", bm.NumFrames(), bm.NumUnpinned())

	return bm.FlushAllFrames()
}
