package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/api"
	"github.com/facturalo/go-cpe/cpe/audit"
	"github.com/facturalo/go-cpe/cpe/cert"
	"github.com/facturalo/go-cpe/cpe/document"
	"github.com/facturalo/go-cpe/cpe/model"
	"github.com/facturalo/go-cpe/cpe/pipeline"
	"github.com/facturalo/go-cpe/cpe/queue"
	"github.com/facturalo/go-cpe/cpe/util"
)

// Demo wiring against the beta environment: creates one receipt, signs
// it with the certificate bundle from disk, enqueues it and drives the
// worker until the job settles.
func main() {

	logrus.SetLevel(logrus.DebugLevel)

	certPath := util.MustEnv("CPE_CERT_PATH")
	certPass := util.MustEnv("CPE_CERT_PASSWORD")
	taxID := util.MustEnv("CPE_RUC")
	solUser := util.MustEnv("CPE_SOL_USER")
	solPass := util.MustEnv("CPE_SOL_PASSWORD")

	bundle, err := os.ReadFile(certPath)
	if err != nil {
		panic(err)
	}

	env := cpe.Beta
	tenantID := "demo"

	docs := document.NewInMemoryStore()
	jobs := queue.NewInMemoryStore()
	certs := cert.NewLoader()
	sink := audit.LogSink{}

	provider := &staticProvider{
		settings: model.TenantSettings{
			TaxID:               taxID,
			BusinessName:        "DEMO COMPANY S.A.C.",
			Address:             "AV. DEMO 123, LIMA",
			Environment:         env,
			EncryptedCertBundle: bundle,
			Passphrase:          certPass,
			Credentials:         model.Credentials{Username: solUser, Password: solPass},
			Enabled:             true,
		},
	}

	remote := api.NewSelector(30 * time.Second)
	svc := pipeline.New(docs, jobs, provider, provider, provider, certs, sink)
	worker := queue.NewWorker(jobs, docs, remote, provider, sink, queue.Config{
		PollInterval: time.Second,
	})

	ctx := context.Background()

	doc := &model.FiscalDocument{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Kind:           model.KindReceipt,
		Series:         "B001",
		Sequence:       1,
		IssuerTaxID:    taxID,
		IssuerName:     provider.settings.BusinessName,
		CustomerID:     "12345678",
		CustomerIDType: model.CustomerDNI,
		CustomerName:   "CLIENTE DE PRUEBA",
		Currency:       "PEN",
		IssuedAt:       time.Now(),
		Status:         model.StatusDraft,
		CreatedAt:      time.Now(),
	}
	if err := docs.Save(ctx, doc); err != nil {
		panic(err)
	}

	signed, err := svc.Sign(ctx, doc.ID, pipeline.SignOptions{ActorID: "demo-cli"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("signed %s, hash %s\n", doc.FullNumber(), signed.Hash)

	if _, err := svc.Enqueue(ctx, doc.ID, model.JobSendDocument); err != nil {
		panic(err)
	}

	for i := 0; i < 30; i++ {
		worker.RunOnce(ctx)
		detail, err := svc.Detail(ctx, doc.ID)
		if err != nil {
			panic(err)
		}
		if detail.Status != model.StatusSigned && detail.Status != model.StatusSent {
			fmt.Printf("final status %s, remote code %d: %s\n",
				detail.Status, detail.RemoteCode, detail.RemoteMessage)
			return
		}
		time.Sleep(time.Second)
	}
	fmt.Println("gave up waiting for a settled status")
}

// staticProvider backs all three collaborator contracts with fixed
// values, enough for a single-tenant demo run.
type staticProvider struct {
	settings model.TenantSettings
}

func (p *staticProvider) GetTenantFiscalSettings(_ context.Context, _ string) (model.TenantSettings, error) {
	return p.settings, nil
}

func (p *staticProvider) GetSaleForDocument(_ context.Context, _ string) (model.SaleSnapshot, error) {
	return model.SaleSnapshot{
		Lines: []model.SaleLine{
			{
				Description: "PRODUCTO DE PRUEBA",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.NewFromFloat(50.00),
				TaxCategory: "S",
				TaxRate:     decimal.NewFromFloat(0.18),
			},
		},
	}, nil
}

func (p *staticProvider) IsFeatureEnabled(_ context.Context, _, _ string) bool {
	return true
}
