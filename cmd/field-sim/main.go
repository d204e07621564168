package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pestops-bknd/internal/models"
	"pestops-bknd/internal/syncclient"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	baseURL  string
	email    string
	password string
	visits   int
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:          "field-sim",
	Short:        "Simulate an agent working offline and syncing",
	SilenceUsage: true,
	Long: `field-sim logs in as an agent, pulls the station list, records
visits while "offline", syncs them, and then resends the same batch to
show that a replay creates nothing new.`,
	RunE: run,
}

func main() {
	rootCmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "API base URL")
	rootCmd.Flags().StringVar(&email, "email", "agent@pestops.local", "agent login")
	rootCmd.Flags().StringVar(&password, "password", "changeme", "agent password")
	rootCmd.Flags().IntVar(&visits, "visits", 3, "interventions to record offline")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	logr := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logr = l
	}
	defer logr.Sync()

	client := syncclient.New(baseURL, logr)
	if err := client.Login(ctx, email, password, "field-sim"); err != nil {
		return err
	}

	ledger := syncclient.NewLedger()
	// first contact: empty batch pulls every site and station
	if _, err := client.SyncLedger(ctx, ledger); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	stations := ledger.Stations()
	if len(stations) == 0 {
		return errors.New("no stations visible, run `opsctl seed` first")
	}
	fmt.Printf("online: %d stations, watermark %d\n", len(stations), ledger.LastSync())

	levels := []models.ConsumptionLevel{models.ConsumptionNone, models.ConsumptionLow, models.ConsumptionMedium, models.ConsumptionHigh}
	for i := 0; i < visits; i++ {
		st := stations[i%len(stations)]
		iv := ledger.RecordIntervention(models.Intervention{
			StationID:        st.ID,
			ConsumptionLevel: levels[rand.Intn(len(levels))],
			IncidentType:     models.IncidentNone,
			BaitReplaced:     rand.Intn(2) == 0,
			StationCleaned:   true,
		})
		ledger.RecordPhoto(models.Photo{
			InterventionID: iv.ID,
			FilePath:       fmt.Sprintf("blobs/%s/station.jpg", iv.ID),
			Type:           models.PhotoStation,
		})
		time.Sleep(10 * time.Millisecond)
	}

	batch := ledger.Pending()
	fmt.Printf("offline: recorded %d interventions, %d photos\n", len(batch.Interventions), len(batch.Photos))

	resp, err := client.SyncLedger(ctx, ledger)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	report("sync", resp)

	// resend the already-acknowledged batch, as a device would after losing the response
	replay, err := client.Sync(ctx, batch)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	report("replay", replay)

	for _, e := range ledger.Rejected() {
		fmt.Printf("still pending: %s %s (%s: %s)\n", e.Entity, e.ID, e.Code, e.Message)
	}
	return nil
}

func report(label string, resp *models.SyncResponse) {
	fmt.Printf("%s: %d interventions, %d photos, %d stations back, %d errors, watermark %d\n",
		label, len(resp.Interventions), len(resp.Photos), len(resp.Stations), len(resp.Errors), resp.Timestamp)
}
