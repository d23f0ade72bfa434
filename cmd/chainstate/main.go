package main

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"

	"github.com/phoreproject/chainstate/cfg"
	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/config"
	"github.com/phoreproject/chainstate/db"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/store"
)

// Options are the options of the chain state inspector.
type Options struct {
	Network string `yaml:"network" cli:"network" desc:"network of the database (mainnet, localnet, regtest)"`
	DataDir string `yaml:"datadir" cli:"datadir" desc:"data directory, defaults to the network's directory"`
	Block   string `yaml:"block" cli:"block" desc:"block to print chunk extras for, defaults to the head"`
}

var output = color.New(color.FgCyan)
var heading = color.New(color.FgGreen, color.Bold)
var errOut = color.New(color.FgRed, color.Bold)

func printTip(name string, tip *primitives.Tip, err error) {
	if store.IsNotFound(err) {
		errOut.Printf("%-12s not set\n", name)
		return
	}
	if err != nil {
		errOut.Printf("%-12s %s\n", name, err)
		return
	}
	output.Printf("%-12s height %d hash %s epoch %s\n", name, tip.Height, tip.LastBlockHash, tip.EpochID)
}

func inspect(s *store.ChainStore, block string) error {
	heading.Println("tips")
	head, err := s.Head()
	printTip("head", head, err)
	headerHead, err := s.HeaderHead()
	printTip("header head", headerHead, err)
	finalHead, err := s.FinalHead()
	printTip("final head", finalHead, err)

	var blockHash chainhash.Hash
	switch {
	case block != "":
		h, err := chainhash.NewHashFromStr(block)
		if err != nil {
			return errors.Wrapf(err, "invalid block hash %s", block)
		}
		blockHash = *h
	case head != nil:
		blockHash = head.LastBlockHash
	}

	if !blockHash.IsZero() {
		extras, err := s.ChunkExtras(blockHash)
		if err != nil {
			return errors.Wrapf(err, "could not read chunk extras of %s", blockHash)
		}
		uids := make([]primitives.ShardUId, 0, len(extras))
		for uid := range extras {
			uids = append(uids, uid)
		}
		sort.Slice(uids, func(i, j int) bool { return uids[i].Less(uids[j]) })

		heading.Printf("chunk extras of %s\n", blockHash)
		for _, uid := range uids {
			extra := extras[uid]
			output.Printf("%-8s root %s gas %d/%d burnt %s proposals %d\n",
				uid, extra.StateRoot, extra.GasUsed, extra.GasLimit, extra.BalanceBurnt, len(extra.ValidatorProposals))
		}
	}

	challenged, err := s.ChallengedBlocks()
	if err != nil {
		return errors.Wrap(err, "could not read challenged blocks")
	}
	heading.Printf("challenged blocks (%d)\n", len(challenged))
	for _, h := range challenged {
		output.Println(h)
	}
	return nil
}

func main() {
	options := Options{Network: "mainnet"}
	globalConfig := cfg.GlobalOptions{LogLevel: "info"}
	err := cfg.LoadFlags(&options, &globalConfig)
	if err != nil {
		logger.Fatal(err)
	}

	lvl, err := logger.ParseLevel(globalConfig.LogLevel)
	if err != nil {
		logger.Fatal(err)
	}
	logger.SetLevel(lvl)

	logger.StandardLogger().SetFormatter(&logger.TextFormatter{
		ForceColors: globalConfig.ForceColors,
	})

	if globalConfig.SentryDSN != "" {
		err = sentry.Init(sentry.ClientOptions{
			Dsn: globalConfig.SentryDSN,
		})
		if err != nil {
			logger.Fatalf("sentry.Init: %s", err)
		}

		defer func() {
			err := recover()

			if err != nil {
				sentry.CurrentHub().Recover(err)
				sentry.Flush(time.Second * 5)
			}
		}()
	}

	c, found := config.NetworkIDs[options.Network]
	if !found {
		logger.Fatalf("unknown network %s", options.Network)
	}

	dir := options.DataDir
	if dir == "" {
		dir, err = config.GetBaseDirectory(options.Network)
		if err != nil {
			logger.Fatal(err)
		}
	}
	dbDir := filepath.Join(dir, "db")
	logger.WithField("dir", dbDir).Info("opening chain database")

	database, err := db.NewBadgerDB(dbDir, dbDir)
	if err != nil {
		logger.Fatal(err)
	}

	s, err := store.NewChainStore(database, &c)
	if err == nil {
		err = inspect(s, options.Block)
	}
	if cerr := database.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if globalConfig.SentryDSN != "" {
			sentry.CaptureException(err)
			sentry.Flush(time.Second * 5)
		}
		logger.Fatal(errors.Wrap(err, "error inspecting chain state"))
	}
}
