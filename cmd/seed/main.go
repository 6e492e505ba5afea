package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bankcards/internal/app"
	"bankcards/internal/auth"
	"bankcards/internal/cache"
	"bankcards/internal/cardnumber"
	"bankcards/internal/config"
	"bankcards/internal/service"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		file     string
		reset    bool
		tokens   bool
		tokenTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create users and cards from a YAML file",
		Long: `Create users and cards from a YAML file using the configured database.

Existing usernames and card numbers are skipped, so the same file can be applied twice.

Examples:
  seed --file seed.yaml
  seed --file seed.yaml --reset --tokens`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DBDriver == "memory" {
				return fmt.Errorf("DB_DRIVER=memory keeps no data between processes; seed a SQL database instead")
			}
			cfg.ResetDB = cfg.ResetDB || reset
			logger := app.NewLogger(cfg.LogLevel)

			seed, err := loadSeedFile(file)
			if err != nil {
				return err
			}
			cipher, err := cardnumber.NewAESCipher(cfg.CardEncryptionKey)
			if err != nil {
				return fmt.Errorf("card cipher init: %w", err)
			}
			store, closeStore, err := app.OpenStore(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
			defer cacheClient.Close()

			s := &seeder{
				users: service.NewUserService(store, cacheClient),
				cards: service.NewCardService(store, cipher, cacheClient, logger, time.Now),
				log:   logger,
				out:   cmd.OutOrStdout(),
			}
			if tokens {
				s.tokens = auth.NewJWTService(cfg.JWTSecret, tokenTTL)
			}

			res, err := s.apply(cmd.Context(), seed)
			if err != nil {
				return err
			}
			logger.WithField("users", res.Users).WithField("cards", res.Cards).Info("seed complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "seed.yaml", "path to the seed YAML file")
	cmd.Flags().BoolVar(&reset, "reset", false, "drop all tables before seeding")
	cmd.Flags().BoolVar(&tokens, "tokens", false, "print an access token for every seeded user")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of printed tokens")
	return cmd
}
