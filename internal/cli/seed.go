package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Send synthetic location and trip webhook payloads",
	Long: `Generates synthetic webhook payloads in the producer's wire format and
posts them to the webhook endpoint. Useful for smoke-testing a stack.`,
	Example: `  wayctl seed --count 20
  wayctl seed --count 100 --geofence-ratio 0.3 --interval 100ms`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Int("count", 10, "number of payloads to send")
	seedCmd.Flags().Float64("geofence-ratio", 0.2, "fraction of events that are geofence crossings")
	seedCmd.Flags().Duration("interval", 250*time.Millisecond, "pause between deliveries")
	seedCmd.Flags().Int64("seed", 0, "random seed (0 = random)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	count, _ := cmd.Flags().GetInt("count")
	ratio, _ := cmd.Flags().GetFloat64("geofence-ratio")
	interval, _ := cmd.Flags().GetDuration("interval")
	seed, _ := cmd.Flags().GetInt64("seed")

	faker := gofakeit.New(seed)

	sent := 0
	for i := 0; i < count; i++ {
		if i > 0 {
			time.Sleep(interval)
		}
		payload, err := json.Marshal(syntheticPayload(faker, ratio))
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		if err := postPayload(url, payload); err != nil {
			fmt.Printf("payload %d: %v\n", i+1, err)
			continue
		}
		sent++
	}

	fmt.Printf("sent %d/%d payloads\n", sent, count)
	return nil
}

// syntheticPayload builds one webhook payload in the producer's loosely
// typed wire shape, string-encoded coordinates included.
func syntheticPayload(faker *gofakeit.Faker, geofenceRatio float64) map[string]any {
	eventType := "location.updated"
	if faker.Float64Range(0, 1) < geofenceRatio {
		if faker.Bool() {
			eventType = "user.entered_geofence"
		} else {
			eventType = "user.exited_geofence"
		}
	}

	userID := faker.DigitN(5)
	now := time.Now().UTC()
	started := now.Add(-time.Duration(faker.IntRange(5, 120)) * time.Minute)

	return map[string]any{
		"id":         faker.UUID(),
		"MMUserId":   userID,
		"type":       eventType,
		"created_at": now.Format(time.RFC3339),
		"live":       "TRUE",
		"location": map[string]any{
			"coordinates": map[string]any{
				"latitude":  fmt.Sprintf("%.6f", faker.Latitude()),
				"longitude": fmt.Sprintf("%.6f", faker.Longitude()),
			},
		},
		"trip": map[string]any{
			"_id":        faker.UUID(),
			"externalId": faker.LetterN(8),
			"MMUserId":   userID,
			"createdAt":  started.Format(time.RFC3339),
			"updatedAt":  now.Format(time.RFC3339),
			"startedAt":  started.Format(time.RFC3339),
			"metadata": map[string]any{
				"route_session_type": faker.RandomString([]string{"pickup", "delivery", "transfer"}),
			},
		},
	}
}
