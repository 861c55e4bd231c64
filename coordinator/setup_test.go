// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/packet"
	"github.com/bitmark-inc/offlined/peer"
	"github.com/bitmark-inc/offlined/peer/peertest"
	"github.com/bitmark-inc/offlined/storage"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
	"github.com/bitmark-inc/offlined/wallet"
)

const testingDirName = "testing"

func TestMain(m *testing.M) {
	os.RemoveAll(testingDirName)
	_ = os.Mkdir(testingDirName, 0700)

	logging := logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}
	if err := logger.Initialise(logging); nil != err {
		panic(fmt.Sprintf("logger initialization failed: %s", err))
	}

	rc := m.Run()
	logger.Finalise()
	os.RemoveAll(testingDirName)
	os.Exit(rc)
}

func newKey(t *testing.T) *account.PrivateKey {
	key, err := account.NewPrivateKey()
	require.Nil(t, err, "new key")
	return key
}

// one device: key, store, wallet and coordinator
type device struct {
	key    *account.PrivateKey
	db     *storage.Database
	wallet *wallet.Wallet
	coord  *Coordinator
}

func newDevice(t *testing.T, issuer *account.PrivateKey, config Config) *device {
	db, err := storage.OpenInMemory()
	require.Nil(t, err, "open database")
	key := newKey(t)
	w := wallet.New(db, key, issuer.Account())
	return &device{
		key:    key,
		db:     db,
		wallet: w,
		coord:  New(db, w, key, config),
	}
}

func (d *device) close() {
	d.db.Close()
}

// issue and store tokens signed by issuer
func (d *device) fund(t *testing.T, issuer *account.PrivateKey, amounts ...uint64) []*token.OfflineToken {
	now := time.Now().UTC()
	tokens := make([]*token.OfflineToken, 0, len(amounts))
	for _, amount := range amounts {
		tok := &token.OfflineToken{
			Id:        token.NewId(),
			Amount:    amount,
			Issuer:    issuer.Account(),
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
		}
		signature, err := issuer.Sign(tok.SigningPayload())
		require.Nil(t, err, "issuer sign")
		tok.Signature = signature
		tokens = append(tokens, tok)
	}
	require.Nil(t, d.wallet.Add(tokens, now), "fund wallet")
	return tokens
}

func (d *device) balance(t *testing.T) uint64 {
	balance, err := d.wallet.Balance(time.Now())
	require.Nil(t, err, "balance")
	return balance
}

func testPeerConfig() peer.Config {
	config := peer.DefaultConfig()
	config.RetryBackoff = 10 * time.Millisecond
	config.AckTimeout = 2 * time.Second
	config.HandshakeTimeout = 2 * time.Second
	config.WriteRate = 10000
	config.WriteBurst = 100
	return config
}

// connect two devices with real sessions, each side served by its
// coordinator
func connect(t *testing.T, alice *device, bob *device) (*peer.Session, *peer.Session) {
	aliceConn, bobConn := peertest.Pipe("alice", "bob")
	aliceSession := peer.NewSession(aliceConn, alice.key, testPeerConfig(), nil)
	bobSession := peer.NewSession(bobConn, bob.key, testPeerConfig(), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var respondErr error
	go func() {
		defer wg.Done()
		respondErr = bobSession.Respond(context.Background())
	}()
	require.Nil(t, aliceSession.Initiate(context.Background()), "initiate")
	wg.Wait()
	require.Nil(t, respondErr, "respond")

	alice.coord.Attach(aliceSession)
	bob.coord.Attach(bobSession)
	return aliceSession, bobSession
}

// replyFunc returns the messages a scripted peer sends back for m
type replyFunc func(m packet.Message) []packet.Message

// scripted remote device
type fakeSession struct {
	remote   *account.PrivateKey
	reply    replyFunc
	incoming chan packet.Message
	done     chan struct{}
	once     sync.Once

	sync.Mutex
	sent []packet.Message
}

func newFakeSession(remote *account.PrivateKey, reply replyFunc) *fakeSession {
	return &fakeSession{
		remote:   remote,
		reply:    reply,
		incoming: make(chan packet.Message, 16),
		done:     make(chan struct{}),
	}
}

func (s *fakeSession) RemoteId() string               { return "fake" }
func (s *fakeSession) RemoteDevice() *account.Account { return s.remote.Account() }
func (s *fakeSession) Done() <-chan struct{}          { return s.done }

func (s *fakeSession) Send(ctx context.Context, m packet.Message) error {
	select {
	case <-s.done:
		return fault.ErrSessionClosed
	default:
	}
	s.Lock()
	s.sent = append(s.sent, m)
	s.Unlock()
	if nil != s.reply {
		for _, r := range s.reply(m) {
			s.incoming <- r
		}
	}
	return nil
}

func (s *fakeSession) Receive(ctx context.Context) (packet.Message, error) {
	select {
	case m := <-s.incoming:
		return m, nil
	case <-s.done:
		return nil, fault.ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSession) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *fakeSession) messages() []packet.Message {
	s.Lock()
	defer s.Unlock()
	return append([]packet.Message(nil), s.sent...)
}

// accept every transfer, signing as the remote device
func acceptAll(remote *account.PrivateKey) replyFunc {
	return func(m packet.Message) []packet.Message {
		transfer, ok := m.(*packet.TokenTransferMessage)
		if !ok {
			return nil
		}
		signature, _ := remote.Sign(transfer.Transaction.Payload())
		return []packet.Message{
			&packet.PaymentResponseMessage{
				TransactionId:     transfer.Transaction.Id,
				Accepted:          true,
				ReceiverSignature: signature,
			},
		}
	}
}

// an encoded signed transfer as the sender's coordinator would build it
func signedTransfer(t *testing.T, sender *device, receiver *account.Account, amount uint64) []byte {
	now := time.Now()
	txId := transaction.NewId()
	tokens, err := sender.wallet.Select(txId, amount, now)
	require.Nil(t, err, "select")
	tx, err := transaction.NewWithId(txId, transaction.Transfer, transaction.Outgoing, sender.key.Account().String(), receiver.String(), amount, token.Ids(tokens), now)
	require.Nil(t, err, "new transaction")
	require.Nil(t, tx.SignAsSender(sender.key), "sign")
	return packet.Encode(&packet.TokenTransferMessage{Transaction: tx, Tokens: tokens})
}

// as decoded off the wire
func decodeTransfer(t *testing.T, encoded []byte) *packet.TokenTransferMessage {
	m, err := packet.Decode(packet.TokenTransfer, encoded)
	require.Nil(t, err, "decode")
	return m.(*packet.TokenTransferMessage)
}

// records what the coordinator hands to settlement
type fakeSettler struct {
	sync.Mutex
	submitted []*transaction.Transaction
	recorded  []*transaction.Transaction
}

func (s *fakeSettler) Submit(ctx context.Context, tx *transaction.Transaction, tokens []*token.OfflineToken) error {
	s.Lock()
	defer s.Unlock()
	s.submitted = append(s.submitted, tx.Clone())
	return nil
}

func (s *fakeSettler) Record(tx *transaction.Transaction) error {
	s.Lock()
	defer s.Unlock()
	s.recorded = append(s.recorded, tx.Clone())
	return nil
}

func (s *fakeSettler) counts() (int, int) {
	s.Lock()
	defer s.Unlock()
	return len(s.submitted), len(s.recorded)
}
