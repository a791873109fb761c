// Package firestore implements wakeup.AccountStore on Google Cloud
// Firestore. An account is a root document under "accounts" with its
// devices in a subcollection; Lookup assembles the whole account and
// Persist writes it back as a unit.
package firestore

import (
	"context"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
)

type AccountStore struct {
	client *firestore.Client
}

func NewAccountStore(client *firestore.Client) *AccountStore {
	return &AccountStore{client: client}
}

// accountRecord is the root document. It only pins the identifier; the
// devices live in a subcollection so individual registrations stay small.
type accountRecord struct {
	ID string `firestore:"id"`
}

type deviceRecord struct {
	ID             int64  `firestore:"id"`
	Platform       string `firestore:"platform"`
	Token          string `firestore:"token,omitempty"`
	LastPushMillis int64  `firestore:"last_push_millis"`
}

// Lookup fetches the account and all of its devices. A missing root
// document maps to wakeup.ErrAccountNotFound.
func (s *AccountStore) Lookup(ctx context.Context, id urn.URN) (*wakeup.Account, error) {
	ref := s.accountRef(id)

	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, wakeup.ErrAccountNotFound
		}
		return nil, fmt.Errorf("account fetch failed: %w", err)
	}

	account := &wakeup.Account{ID: id}

	iter := ref.Collection("devices").Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("device iteration failed: %w", err)
		}

		var record deviceRecord
		if err := doc.DataTo(&record); err != nil {
			// Corrupt rows are skipped rather than failing the whole lookup.
			continue
		}
		account.Devices = append(account.Devices, wakeup.Device{
			ID:             record.ID,
			Platform:       record.Platform,
			PushToken:      record.Token,
			LastPushMillis: record.LastPushMillis,
		})
	}

	return account, nil
}

// Persist writes the account root and every device document in one
// transaction: either the whole account commits or nothing does, so a failed
// persist leaves stored state untouched. Devices are never deleted here; a
// cleared registration is a device with an empty token.
func (s *AccountStore) Persist(ctx context.Context, account *wakeup.Account) error {
	ref := s.accountRef(account.ID)

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(ref, accountRecord{ID: account.ID.String()}); err != nil {
			return err
		}
		for _, device := range account.Devices {
			docID := strconv.FormatInt(device.ID, 10)
			record := deviceRecord{
				ID:             device.ID,
				Platform:       device.Platform,
				Token:          device.PushToken,
				LastPushMillis: device.LastPushMillis,
			}
			if err := tx.Set(ref.Collection("devices").Doc(docID), record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("account persist failed: %w", err)
	}
	return nil
}

// accountRef: accounts/{accountURN}
func (s *AccountStore) accountRef(id urn.URN) *firestore.DocumentRef {
	return s.client.Collection("accounts").Doc(id.String())
}
