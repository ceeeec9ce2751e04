package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"godwatch/internal/admin"
	"godwatch/internal/api"
	"godwatch/internal/audit"
	"godwatch/internal/bridge"
	"godwatch/internal/config"
	"godwatch/internal/notify"
	"godwatch/internal/offense"
	"godwatch/internal/service"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	proc, err := config.LoadProcess()
	if err != nil {
		log.Printf("⚠️ %v, using process defaults", err)
	}

	logFile := &lumberjack.Logger{
		Filename:   proc.LogFile,
		MaxSize:    proc.LogMaxSizeMB,
		MaxBackups: proc.LogMaxBackups,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))

	log.Println("🛡️ ================================")
	log.Println("🛡️  ADMIN WATCH")
	log.Println("🛡️ ================================")

	loaded := config.Bootstrap(proc.SettingsPath)
	settings := loaded.Effective
	log.Printf("⚙️ Poll every %ds, report from %d attacks, kick at %d (kick enabled: %t)",
		settings.IntervalSeconds, settings.AttacksBefore, settings.AttackCount, settings.KickAfterAttacking)
	if settings.WebhookURL == "" {
		log.Println("⚠️ WARNING: no webhook url configured, notifications are disabled")
	}

	journal := audit.New(&lumberjack.Logger{
		Filename:   proc.AuditFile,
		MaxSize:    proc.LogMaxSizeMB,
		MaxBackups: proc.LogMaxBackups,
	})
	journal.Start()

	notifier := notify.NewWebhook(notify.DefaultConfig(settings.WebhookURL))
	notifier.Start()

	link := bridge.New(bridge.NewMirror(), proc.BridgeToken)
	if proc.BridgeToken == "" {
		log.Println("⚠️ ADMINWATCH_BRIDGE_TOKEN not set - any client may attach as the game server")
	}

	svc := service.New(service.Options{
		Settings:    settings,
		Host:        link,
		Permissions: link,
		Notifier:    notifier,
		Journal:     journal,
	})
	link.SetEvents(svc.Router())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	server := api.NewServer(api.RouterConfig{
		Watcher: &dashboard{
			svc:      svc,
			link:     link,
			notifier: notifier,
			journal:  journal,
		},
		Bridge:         link,
		DisableLogging: proc.DisableLogging,
	})

	go func() {
		if err := server.Start(proc.HTTPAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("🔌 Game server bridge: ws://%s/bridge", proc.HTTPAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	log.Println("✅ Ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ API shutdown: %v", err)
	}
	svc.Stop()
	notifier.Stop()
	journal.Stop()
	loaded.Save(proc.SettingsPath)
	log.Println("👋 Goodbye!")
}

// dashboard adapts the running parts to the status API
type dashboard struct {
	svc      *service.Service
	link     *bridge.Bridge
	notifier *notify.Webhook
	journal  *audit.Log
}

func (d *dashboard) Admins() []admin.Record {
	return d.svc.Registry().List()
}

func (d *dashboard) Offenses() []offense.Entry {
	return d.svc.Offenses().Snapshot()
}

func (d *dashboard) Status() api.Status {
	router := d.svc.Router()
	return api.Status{
		AdminsOnline:     d.svc.Registry().Len(),
		IntervalSeconds:  d.svc.Settings().IntervalSeconds,
		AttackSubscribed: router.AttackSubscribed(),
		TargetSubscribed: router.TargetSubscribed(),
		BridgeConnected:  d.link.Connected(),
		Notifications:    d.notifier.Stats(),
		Audit:            d.journal.Stats(),
	}
}
