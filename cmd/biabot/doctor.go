package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"biabot/internal/config"
	"biabot/internal/interpret"
	"biabot/internal/provider"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your BIA installation",
		Long: `Verifies that BIA's configuration, queue broker, backend, and
model provider are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("BIA Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'biabot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Queue broker reachable
			if err := checkBroker(cfg.Queue.URL); err != nil {
				printFail("Queue broker", err.Error())
				failed++
			} else {
				printPass("Queue broker", cfg.Queue.URL)
				passed++
			}

			// 4. Backend reachable
			if err := checkBackend(cfg.Backend.BaseURL); err != nil {
				printFail("Backend", err.Error())
				failed++
			} else {
				printPass("Backend", cfg.Backend.BaseURL)
				passed++
			}

			// 5. Model provider
			if cfg.OpenAI.APIKey == "" {
				printWarn("Model provider", "openai.apiKey is not set")
				warned++
			} else {
				prov := provider.NewClient(provider.ClientConfig{
					APIKey:  cfg.OpenAI.APIKey,
					APIBase: cfg.OpenAI.APIBase,
					Timeout: 10 * time.Second,
					Logger:  logger,
				})
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				err := prov.Healthy(ctx)
				cancel()
				if err != nil {
					printFail("Model provider", err.Error())
					failed++
				} else {
					printPass("Model provider", cfg.OpenAI.Model)
					passed++
				}
			}

			// 6. Category catalog
			if cats, err := interpret.LoadCategories(cfg.OpenAI.CategoriesFile); err != nil {
				printFail("Categories", err.Error())
				failed++
			} else {
				printPass("Categories", fmt.Sprintf("%d categories", len(cats)))
				passed++
			}

			// 7. Notifier credentials
			switch cfg.General.Notifier {
			case "twilio":
				if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" || cfg.Twilio.WhatsAppNumber == "" {
					printWarn("Notifier: twilio", "accountSid/authToken/whatsappNumber incomplete")
					warned++
				} else {
					printPass("Notifier: twilio", "configured")
					passed++
				}
			case "meta":
				if cfg.Meta.AccessToken == "" || cfg.Meta.PhoneNumberID == "" {
					printWarn("Notifier: meta", "accessToken/phoneNumberId incomplete")
					warned++
				} else {
					printPass("Notifier: meta", "configured")
					passed++
				}
			}

			// 8. Gateway port
			if cfg.Gateway.Port != 0 {
				if err := checkPort(cfg.Gateway.Port); err != nil {
					printWarn("Gateway port", fmt.Sprintf("port %d may be in use: %v", cfg.Gateway.Port, err))
					warned++
				} else {
					printPass("Gateway port", fmt.Sprintf(":%d available", cfg.Gateway.Port))
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running BIA.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nBIA should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! BIA is ready to run.\n")
			}
			return nil
		},
	}
}

func checkBroker(url string) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("cannot connect: %w", err)
	}
	conn.Close()
	return nil
}

func checkBackend(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return fmt.Errorf("cannot reach: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
