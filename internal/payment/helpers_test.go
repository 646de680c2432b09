package payment_test

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/frahmantamala/payment-gateway/internal/paymentgateway"
)

type mockProofStorage struct {
	saved  map[string][]byte
	nextID int
}

func newMockProofStorage() *mockProofStorage {
	return &mockProofStorage{saved: make(map[string][]byte)}
}

func (m *mockProofStorage) Save(ctx context.Context, dir, filename string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	m.nextID++
	path := fmt.Sprintf("%s/stored-%d-%s", dir, m.nextID, filename)
	m.saved[path] = data
	return path, nil
}

func (m *mockProofStorage) Delete(ctx context.Context, path string) error {
	delete(m.saved, path)
	return nil
}

func proofFixture(name string, size int64) paymentgateway.ProofFile {
	return paymentgateway.ProofFile{
		Name:    name,
		Size:    size,
		Content: bytes.NewReader(bytes.Repeat([]byte("a"), int(size))),
	}
}
