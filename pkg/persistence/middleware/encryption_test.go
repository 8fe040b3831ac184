package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/vine/pkg/persistence/middleware"
	"github.com/aretw0/vine/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

const counterEnvelope = `{"__store__":"Counter","ver":1,"data":{"count":3,"secret":"my-secret-sauce"}}`

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	// Setup
	underlyingStore := NewMockStore()
	key := generateKey(t)
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	secureStore := mw(underlyingStore)

	ctx := context.Background()

	// 1. Save
	if err := secureStore.SetItem(ctx, "counter", counterEnvelope); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}

	// 2. Verify Underlying Store directly (Should be encrypted)
	stored, err := underlyingStore.GetItem(ctx, "counter")
	if err != nil {
		t.Fatalf("Underlying get failed: %v", err)
	}
	if strings.Contains(stored, "my-secret-sauce") {
		t.Fatalf("Expected secret to be hidden, found: %s", stored)
	}
	var wrapper map[string]any
	if err := json.Unmarshal([]byte(stored), &wrapper); err != nil {
		t.Fatalf("Stored value is not JSON: %v", err)
	}
	if _, ok := wrapper["__encrypted__"]; !ok {
		t.Fatal("Expected __encrypted__ field in stored value")
	}

	// 3. Load via Middleware (Should be decrypted)
	loaded, err := secureStore.GetItem(ctx, "counter")
	if err != nil {
		t.Fatalf("GetItem via middleware failed: %v", err)
	}
	if loaded != counterEnvelope {
		t.Errorf("Expected original envelope, got %s", loaded)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	// Setup
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	// Create middleware with OLD key to save initial value
	mwOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})
	secureStoreOld := mwOld(underlyingStore)

	ctx := context.Background()

	// 1. Save with OLD key
	if err := secureStoreOld.SetItem(ctx, "rotation", "encrypted-with-old-key"); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}

	// 2. Load with NEW key (Active) + OLD key (Fallback)
	mwNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	secureStoreNew := mwNew(underlyingStore)

	loaded, err := secureStoreNew.GetItem(ctx, "rotation")
	if err != nil {
		t.Fatalf("GetItem with rotated key failed: %v", err)
	}
	if loaded != "encrypted-with-old-key" {
		t.Errorf("Decryption with fallback key failed")
	}

	// 3. Save again (Should now use the NEW key)
	if err := secureStoreNew.SetItem(ctx, "rotation", "encrypted-with-new-key"); err != nil {
		t.Fatalf("SetItem with new key failed: %v", err)
	}

	// 4. Verify we CANNOT load with just OLD key anymore
	if _, err := secureStoreOld.GetItem(ctx, "rotation"); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_RejectsPlainValues(t *testing.T) {
	underlyingStore := NewMockStore()
	ctx := context.Background()
	if err := underlyingStore.SetItem(ctx, "plain", counterEnvelope); err != nil {
		t.Fatal(err)
	}

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	if _, err := secureStore.GetItem(ctx, "plain"); err == nil {
		t.Error("Expected plain value to be rejected")
	}
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunStorageContract(t, mw(NewMockStore()))
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for invalid key size")
		}
	}()
	middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
}
