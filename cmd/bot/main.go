package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"referral-bot/internal/bot"
	"referral-bot/internal/config"
	"referral-bot/internal/database"
	"referral-bot/internal/ledger"
	"referral-bot/internal/moderation"
	"referral-bot/internal/referral"
	"referral-bot/internal/session"
	"referral-bot/internal/withdrawal"
	"referral-bot/internal/worker"
)

type stores struct {
	dialogues session.Store[withdrawal.Dialogue]
	drafts    session.Store[moderation.Draft]
	pending   session.Store[bot.Pending]
	flags     worker.Flags
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisHost != "" {
		rdb, err = database.ConnectRedis(ctx, cfg)
		if err != nil {
			log.Fatalf("Could not connect to redis: %v", err)
		}
		defer rdb.Close()
	}
	st := newStores(cfg, rdb)

	tgBot, err := bot.NewTelegramBot(cfg.BotToken)
	if err != nil {
		log.Fatalf("Could not create bot: %v", err)
	}

	store := ledger.NewStore(db)
	notifier := bot.NewNotifier(tgBot, cfg.AdminID, cfg.Currency, cfg.NotifyTimeout)

	engine := referral.NewEngine(store, notifier, referral.Settings{
		ReferralBonus:      cfg.ReferralBonus,
		MilestoneThreshold: cfg.MilestoneThreshold,
		MilestoneBonus:     cfg.MilestoneBonus,
	})
	withdrawals := withdrawal.NewService(store, st.dialogues, notifier, withdrawal.Settings{
		MinWithdrawal: cfg.MinWithdrawal,
		Methods:       cfg.WithdrawalMethods,
	})
	gateway := moderation.NewGateway(moderation.Settings{
		OperatorID:           cfg.AdminID,
		BroadcastConcurrency: cfg.BroadcastConcurrency,
	}, store, withdrawals, notifier, st.drafts)

	app := bot.NewBot(tgBot, cfg, bot.Dependencies{
		Referrals:   engine,
		Withdrawals: withdrawals,
		Moderation:  gateway,
		Membership:  bot.NewChannelMembership(tgBot, cfg.Channel, cfg.NotifyTimeout),
		Pending:     st.pending,
	})
	reminder := worker.NewPendingReminder(store, st.flags, notifier, cfg.PendingReminderAge, cfg.PendingReminderInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Start(gctx)
	})
	g.Go(func() error {
		reminder.Start(gctx)
		return nil
	})

	log.Info("Service started successfully")
	if err := g.Wait(); err != nil {
		log.Fatalf("Service stopped with error: %v", err)
	}
	log.Info("Service stopped")
}

func newStores(cfg *config.Config, rdb *redis.Client) stores {
	if rdb == nil {
		log.Warn("REDIS_HOST not set, keeping sessions in memory")
		return stores{
			dialogues: session.NewMemoryStore[withdrawal.Dialogue](cfg.SessionCapacity, cfg.SessionTTL),
			drafts:    session.NewMemoryStore[moderation.Draft](cfg.SessionCapacity, cfg.SessionTTL),
			pending:   session.NewMemoryStore[bot.Pending](cfg.SessionCapacity, cfg.SessionTTL),
			flags:     worker.NewMemoryFlags(cfg.SessionCapacity, worker.ReminderFlagTTL),
		}
	}
	return stores{
		dialogues: session.NewRedisStore[withdrawal.Dialogue](rdb, "withdrawal_dialogue", cfg.SessionTTL),
		drafts:    session.NewRedisStore[moderation.Draft](rdb, "broadcast_draft", cfg.SessionTTL),
		pending:   session.NewRedisStore[bot.Pending](rdb, "pending_registration", cfg.SessionTTL),
		flags:     rdb,
	}
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
