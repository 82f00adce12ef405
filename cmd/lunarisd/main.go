// Command lunarisd is the Lunaris server binary: it resolves
// configuration, opens the database file, validates it is not corrupt,
// starts a periodic maintenance tick, and accepts connections on the
// length-prefixed wire protocol of spec §6. Flag and logging conventions
// follow tinySQL's cmd/server/main.go (flag.String, log-style startup
// messages) adapted to Lunaris's own internal/lunarislog wrapper.
package main

import (
	"errors"
	"flag"
	"net"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"

	"github.com/lunarisdb/lunaris/internal/config"
	"github.com/lunarisdb/lunaris/internal/lunarislog"
	"github.com/lunarisdb/lunaris/internal/pager"
	"github.com/lunarisdb/lunaris/internal/session"
)

var (
	flagPort    = flag.Int("port", 0, "TCP port to listen on (overrides LUNARIS_PORT and config file)")
	flagDataDir = flag.String("data-dir", "", "data directory (overrides LUNARIS_DATA_DIR and config file)")
	flagConfig  = flag.String("config", "", "optional YAML config file path")
)

func main() {
	flag.Parse()
	log := lunarislog.New("lunarisd")

	cfg, err := config.Load(*flagConfig, *flagPort, *flagDataDir)
	if err != nil {
		log.Fatalf("resolve config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir %s: %v", cfg.DataDir, err)
	}

	db, err := session.Open(cfg.DBPath(), log)
	if err != nil {
		var corrupt pager.ErrCorrupt
		if errors.As(err, &corrupt) {
			log.Errorf("database file is corrupt: %v", err)
			os.Exit(1)
		}
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	stats := db.Stats()
	log.Infof("database opened at %s: %d pages, %s on disk", cfg.DBPath(), stats.PageCount, stats.FileSize)

	maint := cron.New()
	if _, err := maint.AddFunc("@every 1m", func() {
		s := db.Stats()
		log.Infof("maintenance tick: %d pages cached, %d pages total, %s on disk", s.CachedFrames, s.PageCount, s.FileSize)
	}); err != nil {
		log.Fatalf("schedule maintenance tick: %v", err)
	}
	maint.Start()
	defer maint.Stop()

	addr := ":" + strconv.Itoa(cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Errorf("listen on %s: %v", addr, err)
		os.Exit(1)
	}
	log.Infof("listening on %s", addr)

	for {
		conn, err := lis.Accept()
		if err != nil {
			log.Errorf("accept: %v", err)
			continue
		}
		go session.Serve(conn, db, log)
	}
}
