package main

import (
	"errors"
	"fmt"

	"pestops-bknd/internal/database"
	"pestops-bknd/internal/events"
	"pestops-bknd/internal/models"
	"pestops-bknd/internal/services"
	"pestops-bknd/internal/watermark"

	"github.com/spf13/cobra"
)

var (
	seedPassword string
	seedStations int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo accounts, a site and its stations",
	Long: `Create the schema if needed, then one account per role
(admin@, supervisor@, agent@ and client@pestops.local), a client site and
--stations bait stations. Accounts that already exist are left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := database.CreateSchema(ctx, e.db); err != nil {
			return err
		}

		users := services.NewUserService(e.db)
		var clientID string
		for _, role := range []models.Role{models.RoleAdmin, models.RoleSupervisor, models.RoleAgent, models.RoleClient} {
			u, err := users.Create(ctx, models.UserInput{
				Email:    string(role) + "@pestops.local",
				Name:     "Demo " + string(role),
				Password: seedPassword,
				Role:     role,
			})
			if errors.Is(err, services.ErrConflict) {
				fmt.Printf("skip %s, already exists\n", role)
				continue
			}
			if err != nil {
				return err
			}
			if role == models.RoleClient {
				clientID = u.ID
			}
			fmt.Printf("created %s\n", u.Email)
		}

		fence := watermark.NewFence(nil)
		in := models.SiteInput{Name: "Demo Warehouse", Address: "Spintex Road, Accra"}
		if clientID != "" {
			in.ClientID = &clientID
		}
		site, err := services.NewSiteService(e.db, fence).Create(ctx, in)
		if err != nil {
			return err
		}

		stations := services.NewStationService(e.db, fence, events.Nop{}, e.logr.Logger)
		for i := 1; i <= seedStations; i++ {
			_, err := stations.Create(ctx, models.StationInput{
				SiteID:     site.ID,
				Identifier: fmt.Sprintf("ST-%03d", i),
				Latitude:   5.6208 + float64(i)*0.0001,
				Longitude:  -0.1180,
			})
			if err != nil {
				return err
			}
		}
		fmt.Printf("site %s with %d stations\n", site.ID, seedStations)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "changeme", "password for every demo account")
	seedCmd.Flags().IntVar(&seedStations, "stations", 5, "bait stations to create")
	rootCmd.AddCommand(seedCmd)
}
