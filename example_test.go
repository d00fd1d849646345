package aptoosh_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	aptoosh "github.com/landofcash/aptoosh-sub000"
	"github.com/landofcash/aptoosh-sub000/signer"
	"github.com/landofcash/aptoosh-sub000/store"
)

func Example() {
	ctx := context.Background()

	client, err := aptoosh.New(store.NewMemory())
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	buyerKey, _ := signer.GenerateEd25519()
	sellerKey, _ := signer.GenerateSecp256k1()
	buyer := client.NewSession(buyerKey)
	seller := client.NewSession(sellerKey)

	seed, err := aptoosh.NewOrderSeed()
	if err != nil {
		log.Fatal(err)
	}

	// The seller shares the public key derived for this order only.
	sellerPub, err := seller.PublicKey(ctx, seed)
	if err != nil {
		log.Fatal(err)
	}

	if _, err := buyer.CreatePayload(ctx, seed, aptoosh.SlotBuyer, []byte("123 Main St"), sellerPub); err != nil {
		log.Fatal(err)
	}

	address, err := seller.DecryptPayload(ctx, seed, aptoosh.SlotBuyer)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(address))

	_, err = seller.DecryptPayload(ctx, seed, aptoosh.SlotSeller)
	fmt.Println(errors.Is(err, aptoosh.ErrNotFound))
	// Output:
	// 123 Main St
	// true
}
