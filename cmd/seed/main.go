package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ocpi/internal/config"
	"ocpi/internal/db"
	"ocpi/internal/models"
	"ocpi/internal/repo"
	"ocpi/internal/security"

	"github.com/brianvoe/gofakeit/v6"
)

func main() {
	cfgPath := flag.String("config", "", "config file")
	partnerCC := flag.String("partner_cc", "DE", "eMSP country code")
	partnerPID := flag.String("partner_pid", "EMS", "eMSP party id")
	partnerToken := flag.String("partner_token", "devtoken", "credentials token the eMSP sends (stored hashed)")
	outboundToken := flag.String("outbound_token", "cpo-outbound", "credentials token sent to the eMSP")
	partnerURL := flag.String("partner_url", "http://localhost:9090/ocpi/emsp/2.2.1", "eMSP receiver base url")
	pricePerKwh := flag.Float64("price_per_kwh", 0.35, "billing price per kWh")
	idleRate := flag.Float64("idle_rate", 0.10, "idle fee per minute")
	currency := flag.String("currency", "EUR", "tariff currency")
	seed := flag.Int64("seed", 0, "fake data seed (0 = random)")
	history := flag.Bool("history", true, "seed one completed transaction with meter values and status history")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	faker := gofakeit.New(*seed)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	partners := repo.NewPartnersRepo(d.Pool)
	sites := repo.NewSitesRepo(d.Pool)
	stations := repo.NewChargersRepo(d.Pool)
	state := repo.NewStateRepo(d.Pool)
	tariffs := repo.NewTariffsRepo(d.Pool)
	sessions := repo.NewSessionsRepo(d.Pool)
	events := repo.NewEventsRepo(d.Pool)

	tenantID, err := partners.CreateTenant(ctx, models.Tenant{CountryCode: cfg.Seed.CountryCode, PartyID: cfg.Seed.PartyID})
	if err != nil {
		log.Fatal(err)
	}

	endpoints := make([]models.Endpoint, 0, 4)
	for _, module := range []string{"sessions", "cdrs", "locations", "commands"} {
		endpoints = append(endpoints, models.Endpoint{Module: module, Role: models.RoleReceiver, URL: *partnerURL + "/" + module})
	}
	partnerID, err := partners.Upsert(ctx, models.TenantPartner{
		TenantID:      tenantID,
		CountryCode:   *partnerCC,
		PartyID:       *partnerPID,
		TokenHash:     security.HashSecretSHA256(*partnerToken),
		OutboundToken: *outboundToken,
		Endpoints:     endpoints,
	})
	if err != nil {
		log.Fatal(err)
	}

	addr := faker.Address()
	locationID, err := sites.CreateLocation(ctx, models.Location{
		TenantID:   tenantID,
		Name:       faker.Company() + " Charging",
		Address:    addr.Street,
		City:       addr.City,
		PostalCode: addr.Zip,
		Country:    "NLD",
		Latitude:   addr.Latitude,
		Longitude:  addr.Longitude,
		TimeZone:   "Europe/Amsterdam",
	})
	if err != nil {
		log.Fatal(err)
	}

	tariffID, err := tariffs.Create(ctx, models.Tariff{TenantID: tenantID, Currency: *currency, PricePerKwh: *pricePerKwh})
	if err != nil {
		log.Fatal(err)
	}
	if err := tariffs.UpsertBillingConfig(ctx, models.BillingConfig{
		LocationID:        locationID,
		ChargeMethod:      models.ChargePerKwh,
		PricePerKwh:       *pricePerKwh,
		IdleRatePerMinute: *idleRate,
		Currency:          *currency,
	}); err != nil {
		log.Fatal(err)
	}

	for i := 1; i <= cfg.Seed.Stations; i++ {
		stationID := fmt.Sprintf("CS-%s", faker.LetterN(6))
		if err := stations.Upsert(ctx, models.ChargingStation{
			ID:         stationID,
			TenantID:   tenantID,
			LocationID: locationID,
			IsOnline:   false,
			Vendor:     faker.RandomString([]string{"ABB", "Alfen", "Wallbox", "Kempower"}),
			Model:      faker.Word(),
		}); err != nil {
			log.Fatal(err)
		}
		evseUID := fmt.Sprintf("%s*%s*E%d", cfg.Seed.CountryCode, cfg.Seed.PartyID, faker.Number(10000, 99999))
		evseID, err := sites.CreateEvse(ctx, models.Evse{
			TenantID:          tenantID,
			StationID:         stationID,
			EvseUID:           evseUID,
			StationEvseID:     1,
			PhysicalReference: fmt.Sprintf("%d", i),
		})
		if err != nil {
			log.Fatal(err)
		}
		connectorIDs := make([]int, 0, 2)
		for n := 1; n <= 2; n++ {
			connectorID, err := state.UpsertConnector(ctx, models.Connector{
				TenantID:           tenantID,
				StationID:          stationID,
				EvseID:             evseID,
				ConnectorUID:       fmt.Sprintf("%d", n),
				StationConnectorID: n,
				Status:             models.ConnectorAvailable,
				Type:               "IEC_62196_T2",
				Format:             "SOCKET",
				PowerType:          "AC_3_PHASE",
				MaxVoltage:         230,
				MaxAmperage:        32,
			})
			if err != nil {
				log.Fatal(err)
			}
			connectorIDs = append(connectorIDs, connectorID)
		}
		if err := stations.SetOnline(ctx, stationID, true); err != nil {
			log.Fatal(err)
		}
		if *history && i == 1 {
			seedHistory(ctx, faker, sessions, events, state, tenantID, stationID, evseID, connectorIDs[0], locationID, tariffID)
		}
		fmt.Fprintf(os.Stdout, "station %s evse %s\n", stationID, evseUID)
	}

	fmt.Printf("Seeded tenant %d (%s*%s), partner %d (%s*%s), location %d, tariff %d\n",
		tenantID, cfg.Seed.CountryCode, cfg.Seed.PartyID, partnerID, *partnerCC, *partnerPID, locationID, tariffID)
}

// seedHistory records one finished transaction on connector 1 of the station,
// with hourly meter values and the status notifications an idle fee is
// computed from.
func seedHistory(ctx context.Context, faker *gofakeit.Faker, sessions *repo.SessionsRepo, events *repo.EventsRepo, state *repo.StateRepo,
	tenantID int, stationID string, evseID, connectorID, locationID, tariffID int) {
	start := time.Now().UTC().Add(-6 * time.Hour).Truncate(time.Minute)
	end := start.Add(3 * time.Hour)
	txID, err := sessions.Start(ctx, models.Transaction{
		TenantID:      tenantID,
		TransactionID: faker.UUID(),
		StationID:     stationID,
		EvseID:        &evseID,
		ConnectorID:   &connectorID,
		LocationID:    &locationID,
		StartTime:     start,
		IDToken:       faker.LetterN(8),
		IDTokenType:   string(models.IDTokenISO14443),
		TariffID:      &tariffID,
	})
	if err != nil {
		log.Fatal(err)
	}

	wh := 0.0
	for h := 0; h <= 2; h++ {
		wh += faker.Float64Range(5000, 11000)
		if _, err := sessions.InsertMeterValue(ctx, models.MeterValue{
			TenantID:              tenantID,
			TransactionDatabaseID: &txID,
			TariffID:              &tariffID,
			Timestamp:             start.Add(time.Duration(h)*time.Hour + time.Minute),
			SampledValues:         []models.SampledValue{{Measurand: "Energy.Active.Import.Register", Value: wh, Unit: "Wh"}},
		}); err != nil {
			log.Fatal(err)
		}
	}

	// Charging for two hours, then plugged in but idle until the end.
	for _, st := range []struct {
		status string
		at     time.Time
	}{
		{models.ConnectorCharging, start},
		{models.ConnectorSuspendedEV, start.Add(2 * time.Hour)},
		{models.ConnectorFinishing, end},
		{models.ConnectorAvailable, end.Add(time.Minute)},
	} {
		if err := events.InsertStatus(ctx, tenantID, stationID, 1, st.status, st.at); err != nil {
			log.Fatal(err)
		}
	}
	if err := state.SetStatus(ctx, connectorID, models.ConnectorAvailable); err != nil {
		log.Fatal(err)
	}

	if err := sessions.End(ctx, txID, models.Transaction{EndTime: &end, TotalKwh: wh / 1000}); err != nil {
		log.Fatal(err)
	}
}
