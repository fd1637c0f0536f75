package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send [file]",
	Short: "Replay webhook payloads from a JSON file",
	Long: `Reads a JSON array of webhook payloads from a file and posts each one
to the webhook endpoint, pausing between deliveries.`,
	Example: `  wayctl send ./payloads.json
  wayctl send ./payloads.json --interval 5s --url http://localhost:8080/webhook-endpoint`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().Duration("interval", 5*time.Second, "pause between deliveries")
}

func runSend(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	interval, _ := cmd.Flags().GetDuration("interval")

	payloads, err := loadPayloads(args[0])
	if err != nil {
		return err
	}

	for i, payload := range payloads {
		if i > 0 {
			time.Sleep(interval)
		}
		if err := postPayload(url, payload); err != nil {
			fmt.Fprintf(os.Stderr, "payload %d: %v\n", i+1, err)
			continue
		}
		fmt.Printf("payload %d: sent\n", i+1)
	}
	return nil
}

func loadPayloads(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}

	var payloads []json.RawMessage
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("failed to decode payload file: %w", err)
	}
	return payloads, nil
}

func postPayload(url string, payload []byte) error {
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
