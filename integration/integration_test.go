//go:build integration

package integration

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	aptoosh "github.com/landofcash/aptoosh-sub000"
	"github.com/landofcash/aptoosh-sub000/signer"
	"github.com/landofcash/aptoosh-sub000/store"
	"github.com/landofcash/aptoosh-sub000/store/badgerstore"
	"github.com/landofcash/aptoosh-sub000/store/httpstore"
	"github.com/landofcash/aptoosh-sub000/store/redisstore"
	"github.com/landofcash/aptoosh-sub000/store/storetest"
)

var (
	redisAddr  string
	httpURL    string
	httpAPIKey string
)

func TestMain(m *testing.M) {
	// Load .env file if it exists (won't error if missing)
	if err := godotenv.Load("../.env"); err != nil {
		os.Stderr.WriteString("Note: .env file not found at project root\n")
	}

	redisAddr = os.Getenv("APTOOSH_REDIS_ADDR")
	httpURL = os.Getenv("APTOOSH_HTTP_URL")
	httpAPIKey = os.Getenv("APTOOSH_HTTP_API_KEY")

	gin.SetMode(gin.TestMode)

	os.Stderr.WriteString("Running integration tests...\n")
	if redisAddr != "" {
		os.Stderr.WriteString("Redis: " + redisAddr + "\n")
	}
	if httpURL != "" {
		os.Stderr.WriteString("Record service: " + httpURL + "\n")
	}

	os.Exit(m.Run())
}

// uniquePrefix isolates one test's keys on a shared backend.
func uniquePrefix(t *testing.T) string {
	t.Helper()
	seed, err := aptoosh.NewOrderSeed()
	if err != nil {
		t.Fatal(err)
	}
	return "it-" + strings.ToLower(seed.String())
}

func newRedisStore(t *testing.T) store.Store {
	t.Helper()
	if redisAddr == "" {
		t.Skip("APTOOSH_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := redisstore.New(ctx, redisstore.Config{
		Addr:      redisAddr,
		Username:  os.Getenv("APTOOSH_REDIS_USERNAME"),
		Password:  os.Getenv("APTOOSH_REDIS_PASSWORD"),
		KeyPrefix: uniquePrefix(t),
	})
	if err != nil {
		t.Fatalf("redisstore.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// newHTTPStore talks to APTOOSH_HTTP_URL when set, otherwise to a local
// record server over an in-memory badger database.
func newHTTPStore(t *testing.T) store.Store {
	t.Helper()

	baseURL := httpURL
	if baseURL == "" {
		db, err := badgerstore.OpenInMemory()
		if err != nil {
			t.Fatalf("badgerstore.OpenInMemory() error = %v", err)
		}
		t.Cleanup(func() { db.Close() })

		srv := httptest.NewServer(httpstore.NewHandler(db, httpstore.WithAPIKey(httpAPIKey)))
		t.Cleanup(srv.Close)
		baseURL = srv.URL
	}

	st, err := httpstore.New(httpstore.Config{
		BaseURL:   baseURL,
		APIKey:    httpAPIKey,
		Timeout:   30 * time.Second,
		CacheSize: -1,
	})
	if err != nil {
		t.Fatalf("httpstore.New() error = %v", err)
	}
	return st
}

func TestIntegration_RedisConformance(t *testing.T) {
	storetest.Run(t, newRedisStore)
}

func TestIntegration_HTTPConformance(t *testing.T) {
	if httpURL != "" {
		// A shared service keeps records across subtests, so the fixed
		// conformance seeds would collide.
		t.Skip("conformance needs a fresh service; covered by the flow test")
	}
	storetest.Run(t, newHTTPStore)
}

func TestIntegration_RedisOrderFlow(t *testing.T) {
	runOrderFlow(t, newRedisStore(t))
}

func TestIntegration_HTTPOrderFlow(t *testing.T) {
	runOrderFlow(t, newHTTPStore(t))
}

func runOrderFlow(t *testing.T, st store.Store) {
	t.Helper()

	client, err := aptoosh.New(st,
		aptoosh.WithPollingInitialInterval(100*time.Millisecond),
		aptoosh.WithPollingMaxBackoff(time.Second),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	buyerKey, _ := signer.GenerateEd25519()
	sellerKey, _ := signer.GenerateSecp256k1()
	buyer := client.NewSession(buyerKey)
	seller := client.NewSession(sellerKey)

	seed, err := aptoosh.NewOrderSeed()
	if err != nil {
		t.Fatal(err)
	}
	buyerPub, err := buyer.PublicKey(ctx, seed)
	if err != nil {
		t.Fatalf("buyer PublicKey() error = %v", err)
	}
	sellerPub, err := seller.PublicKey(ctx, seed)
	if err != nil {
		t.Fatalf("seller PublicKey() error = %v", err)
	}

	address := []byte(`{"fullName":"John Doe","address":"123 Main St"}`)
	go func() {
		time.Sleep(300 * time.Millisecond)
		if _, err := buyer.CreatePayload(ctx, seed, aptoosh.SlotBuyer, address, sellerPub); err != nil {
			t.Errorf("buyer CreatePayload() error = %v", err)
		}
	}()

	got, err := seller.WaitForPayload(ctx, seed, aptoosh.SlotBuyer, aptoosh.WithWaitTimeout(20*time.Second))
	if err != nil {
		t.Fatalf("seller WaitForPayload() error = %v", err)
	}
	if string(got) != string(address) {
		t.Errorf("seller got %q, want %q", got, address)
	}

	if _, err := seller.CreatePayload(ctx, seed, aptoosh.SlotSeller, []byte("ships monday"), buyerPub); err != nil {
		t.Fatalf("seller CreatePayload() error = %v", err)
	}
	note, err := buyer.DecryptPayload(ctx, seed, aptoosh.SlotSeller)
	if err != nil {
		t.Fatalf("buyer DecryptPayload() error = %v", err)
	}
	if string(note) != "ships monday" {
		t.Errorf("buyer got %q", note)
	}

	_, err = buyer.CreatePayload(ctx, seed, aptoosh.SlotBuyer, []byte("changed"), sellerPub)
	if !errors.Is(err, aptoosh.ErrAlreadyPublished) {
		t.Errorf("rewrite error = %v, want ErrAlreadyPublished", err)
	}

	rec, err := st.Read(ctx, seed.String(), aptoosh.SlotBuyer)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if err := aptoosh.VerifyReveal(rec, address); err != nil {
		t.Errorf("VerifyReveal() error = %v", err)
	}
}
