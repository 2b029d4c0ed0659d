// Command provision is the back-office tool that seeds what the engine only
// ever reads: operator accounts (with their API key and signing secret),
// apps, and entitlements. Keys and secrets are printed exactly once.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/malwarebo/playgate/models"
	"github.com/malwarebo/playgate/security"
	"github.com/malwarebo/playgate/stores"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "provision",
		Short:         "Provision operators, apps and entitlements for Playgate",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "config file (default ./config/config.json)")

	cobra.OnInitialize(func() {
		if cfgFile, _ := root.PersistentFlags().GetString("config"); cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.SetConfigName("config")
			viper.SetConfigType("json")
			viper.AddConfigPath("config")
		}
		viper.SetEnvPrefix("")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()
	})

	root.AddCommand(newOperatorCmd())
	root.AddCommand(newAppCmd())
	root.AddCommand(newGrantCmd())
	return root
}

func newOperatorCmd() *cobra.Command {
	var name string
	var balance string

	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Create an operator account with a fresh key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, encryption, err := connect()
			if err != nil {
				return err
			}

			key, keyHash, err := security.GenerateOperatorKey()
			if err != nil {
				return err
			}
			signingSecret, err := security.GenerateSigningSecret()
			if err != nil {
				return err
			}
			encryptedSecret, err := encryption.Encrypt(signingSecret)
			if err != nil {
				return err
			}

			startingBalance, err := decimal.NewFromString(balance)
			if err != nil {
				return fmt.Errorf("invalid balance %q: %w", balance, err)
			}

			operator := &models.Operator{
				ID:            uuid.NewString(),
				Name:          name,
				KeyHash:       keyHash,
				SigningSecret: encryptedSecret,
				Balance:       startingBalance,
				Active:        true,
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := stores.NewOperatorStore(database).Create(ctx, operator); err != nil {
				return err
			}

			fmt.Printf("operator_id:     %s\n", operator.ID)
			fmt.Printf("api_key:         %s\n", key)
			fmt.Printf("signing_secret:  %s\n", signingSecret)
			fmt.Println()
			fmt.Println("Store the key and secret now; they are not recoverable.")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "operator display name")
	cmd.Flags().StringVar(&balance, "balance", "0", "starting prepaid balance")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAppCmd() *cobra.Command {
	var code, name, price string
	var minPlayers, maxPlayers int

	cmd := &cobra.Command{
		Use:   "app",
		Short: "Create a purchasable app",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := connect()
			if err != nil {
				return err
			}

			unitPrice, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", price, err)
			}
			if minPlayers < 1 || maxPlayers < minPlayers {
				return fmt.Errorf("invalid player range [%d,%d]", minPlayers, maxPlayers)
			}

			app := &models.App{
				ID:         uuid.NewString(),
				Code:       code,
				Name:       name,
				UnitPrice:  unitPrice,
				MinPlayers: minPlayers,
				MaxPlayers: maxPlayers,
				Active:     true,
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := stores.NewCatalogStore(database).CreateApp(ctx, app); err != nil {
				return err
			}

			fmt.Printf("app_id: %s\n", app.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "app code used by kiosks")
	cmd.Flags().StringVar(&name, "name", "", "app display name")
	cmd.Flags().StringVar(&price, "price", "", "per-player unit price")
	cmd.Flags().IntVar(&minPlayers, "min-players", 1, "minimum player count")
	cmd.Flags().IntVar(&maxPlayers, "max-players", 0, "maximum player count")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("max-players")
	return cmd
}

func newGrantCmd() *cobra.Command {
	var operatorID, appID string

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Entitle an operator to an app",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := connect()
			if err != nil {
				return err
			}

			entitlement := &models.Entitlement{
				ID:         uuid.NewString(),
				OperatorID: operatorID,
				AppID:      appID,
				Active:     true,
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := stores.NewCatalogStore(database).CreateEntitlement(ctx, entitlement); err != nil {
				return err
			}

			fmt.Printf("entitlement_id: %s\n", entitlement.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&operatorID, "operator", "", "operator id")
	cmd.Flags().StringVar(&appID, "app", "", "app id")
	_ = cmd.MarkFlagRequired("operator")
	_ = cmd.MarkFlagRequired("app")
	return cmd
}

func connect() (*gorm.DB, *security.EncryptionManager, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		viper.GetString("database.host"),
		viper.GetInt("database.port"),
		viper.GetString("database.user"),
		viper.GetString("database.password"),
		viper.GetString("database.dbname"),
		sslMode(),
	)

	database, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	encryptionKey := viper.GetString("security.encryption_key")
	if envKey := os.Getenv("ENCRYPTION_KEY"); envKey != "" {
		encryptionKey = envKey
	}
	encryption, err := security.NewEncryptionManagerFromHex(encryptionKey)
	if err != nil {
		return nil, nil, err
	}

	return database, encryption, nil
}

func sslMode() string {
	if mode := viper.GetString("database.sslmode"); mode != "" {
		return mode
	}
	return "disable"
}
