package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stakevault/core/state"
	"stakevault/crypto"
	"stakevault/native/bank"
	"stakevault/native/common"
	"stakevault/native/rewards"
	"stakevault/native/stake"
	"stakevault/storage"
)

const (
	testSecret = "test-secret"
	testIssuer = "stakevault"
	day        = int64(24 * 60 * 60)
)

var (
	admin     = [20]byte{0xad}
	buyer     = [20]byte{0xb1}
	forwarder = [20]byte{0xf1}
	funding   = [20]byte{0xf0}
)

type harness struct {
	server  *Server
	handler http.Handler
	ledger  *bank.Ledger
	signer  *crypto.PrivateKey
	now     int64
}

func newHarness(t *testing.T, limit RateLimit) *harness {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	stakeLedger, err := bank.NewLedger(mgr, "VLT", crypto.ModuleAddress(stake.ModuleName))
	require.NoError(t, err)
	rewardsCustody := crypto.ModuleAddress(rewards.ModuleName)
	rewardsLedger, err := bank.NewLedger(mgr, "VLT", rewardsCustody)
	require.NoError(t, err)

	for _, role := range common.AllRoles {
		require.NoError(t, mgr.SetRole(string(role), admin[:]))
	}
	require.NoError(t, mgr.SetRole(string(common.RoleDeposit), buyer[:]))
	require.NoError(t, mgr.SetRole(string(common.RoleDeposit), forwarder[:]))
	require.NoError(t, stakeLedger.Credit(buyer, big.NewInt(10_000)))
	require.NoError(t, stakeLedger.Credit(rewardsCustody, big.NewInt(50_000)))

	h := &harness{ledger: stakeLedger, now: 1_700_000_000}
	stakeEngine := stake.NewEngine()
	stakeEngine.SetState(mgr)
	stakeEngine.SetToken(stakeLedger)
	stakeEngine.SetNowFunc(func() int64 { return h.now })

	rewardsEngine := rewards.NewEngine()
	rewardsEngine.SetState(mgr)
	rewardsEngine.SetToken(rewardsLedger)

	h.signer, err = crypto.GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, rewardsEngine.SetTrustedSigner(common.Direct(admin), h.signer.PubKey().Address().Array()))

	h.server, err = NewServer(stakeEngine, rewardsEngine, Config{
		Auth:      AuthConfig{HMACSecret: testSecret, Issuer: testIssuer, Audience: []string{"api"}},
		RateLimit: limit,
		Now:       func() time.Time { return time.Unix(h.now, 0) },
	})
	require.NoError(t, err)
	h.handler = h.server.Handler()
	return h
}

func (h *harness) token(t *testing.T, subject, origin [20]byte) string {
	t.Helper()
	token, err := IssueToken(TokenRequest{
		Secret:   testSecret,
		Issuer:   testIssuer,
		Audience: []string{"api"},
		Subject:  subject,
		Origin:   origin,
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	return token
}

func (h *harness) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	envelope := decode[errorEnvelope](t, rec)
	require.Equal(t, code, envelope.Error.Code)
	require.NotEmpty(t, envelope.Error.RequestID)
}

func (h *harness) configure(t *testing.T, adminToken string) {
	t.Helper()
	rec := h.do(t, http.MethodPut, "/v1/admin/stake/config", adminToken, ConfigView{
		D1Duration: uint64(30 * day),
		D2Duration: uint64(90 * day),
		Fees:       5,
		PrizePool:  10,
		D1Share:    40,
		D2Share:    45,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealthzIsPublic(t *testing.T) {
	h := newHarness(t, RateLimit{})
	rec := h.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestsRequireValidToken(t *testing.T) {
	h := newHarness(t, RateLimit{})
	requireErrorCode(t, h.do(t, http.MethodGet, "/v1/stake/pools", "", nil), http.StatusUnauthorized, codeUnauthenticated)

	wrongAudience, err := IssueToken(TokenRequest{Secret: testSecret, Issuer: testIssuer, Audience: []string{"other"}, Subject: buyer})
	require.NoError(t, err)
	requireErrorCode(t, h.do(t, http.MethodGet, "/v1/stake/pools", wrongAudience, nil), http.StatusUnauthorized, codeUnauthenticated)

	wrongSecret, err := IssueToken(TokenRequest{Secret: "other", Issuer: testIssuer, Audience: []string{"api"}, Subject: buyer})
	require.NoError(t, err)
	requireErrorCode(t, h.do(t, http.MethodGet, "/v1/stake/pools", wrongSecret, nil), http.StatusUnauthorized, codeUnauthenticated)

	expired, err := IssueToken(TokenRequest{Secret: testSecret, Issuer: testIssuer, Audience: []string{"api"}, Subject: buyer, TTL: time.Minute, Now: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	requireErrorCode(t, h.do(t, http.MethodGet, "/v1/stake/pools", expired, nil), http.StatusUnauthorized, codeUnauthenticated)
}

func TestStakeLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, RateLimit{})
	adminToken := h.token(t, admin, [20]byte{})
	buyerToken := h.token(t, buyer, [20]byte{})
	h.configure(t, adminToken)

	rec := h.do(t, http.MethodPost, "/v1/stake/deposit", buyerToken, depositRequest{Participant: "buyer-1", Amount: "1000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deposit := decode[depositResult](t, rec)
	require.True(t, deposit.Recorded)
	require.Equal(t, uint64(1), deposit.Stake.ID)
	require.Equal(t, "400", deposit.Stake.D1Amount)
	require.Equal(t, "450", deposit.Stake.D2Amount)
	require.Equal(t, crypto.FormatAddress(buyer), deposit.Stake.Owner)

	rec = h.do(t, http.MethodPost, "/v1/stake/withdraw", buyerToken, withdrawRequest{StakeID: 1})
	requireErrorCode(t, rec, http.StatusTooEarly, stake.CodeNothingClaimable)

	rec = h.do(t, http.MethodPost, "/v1/stake/withdraw", adminToken, withdrawRequest{StakeID: 1})
	requireErrorCode(t, rec, http.StatusForbidden, stake.CodeUnauthorized)

	rec = h.do(t, http.MethodGet, "/v1/stake/stakes/9", buyerToken, nil)
	requireErrorCode(t, rec, http.StatusNotFound, stake.CodeNotFound)

	h.now += 31 * day
	rec = h.do(t, http.MethodGet, "/v1/stake/stakes/1/claimable", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[claimableResult](t, rec)
	require.Equal(t, "400", preview.Amount)
	require.Equal(t, stake.PhaseAfterD1.String(), preview.Phase)

	rec = h.do(t, http.MethodPost, "/v1/stake/withdraw", buyerToken, withdrawRequest{StakeID: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	withdrawal := decode[withdrawResult](t, rec)
	require.Equal(t, "400", withdrawal.Amount)
	require.Equal(t, stake.StatusD1Claimed.String(), withdrawal.Status)

	rec = h.do(t, http.MethodGet, "/v1/stake/participants/buyer-1/stakes?limit=10", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[stakesPage](t, rec)
	require.Equal(t, uint64(1), page.Total)
	require.Len(t, page.Stakes, 1)
	require.Equal(t, stake.StatusD1Claimed.String(), page.Stakes[0].Status)

	rec = h.do(t, http.MethodGet, "/v1/stake/pools", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pools := decode[PoolsView](t, rec)
	require.Equal(t, "50", pools.FeesAccrued)
	require.Equal(t, "100", pools.PrizePoolAccrued)
}

func TestRejectsMalformedBodies(t *testing.T) {
	h := newHarness(t, RateLimit{})
	buyerToken := h.token(t, buyer, [20]byte{})

	req := httptest.NewRequest(http.MethodPost, "/v1/stake/deposit", bytes.NewReader([]byte(`{"participant":"p","amount":"1","extra":true}`)))
	req.Header.Set("Authorization", "Bearer "+buyerToken)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	requireErrorCode(t, rec, http.StatusBadRequest, codeInvalidRequest)

	rec = h.do(t, http.MethodPost, "/v1/stake/deposit", buyerToken, depositRequest{Participant: "p", Amount: "1.5"})
	requireErrorCode(t, rec, http.StatusBadRequest, codeInvalidRequest)

	rec = h.do(t, http.MethodGet, "/v1/stake/participants/p/stakes?limit=0", buyerToken, nil)
	requireErrorCode(t, rec, http.StatusBadRequest, codeInvalidRequest)
}

func TestDepositRecordsOriginAsOwner(t *testing.T) {
	h := newHarness(t, RateLimit{})
	h.configure(t, h.token(t, admin, [20]byte{}))

	rec := h.do(t, http.MethodPost, "/v1/stake/deposit", h.token(t, forwarder, buyer), depositRequest{Participant: "buyer-1", Amount: "100"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deposit := decode[depositResult](t, rec)
	require.Equal(t, crypto.FormatAddress(buyer), deposit.Stake.Owner)

	bal, err := h.ledger.BalanceOf(buyer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(9_900), bal)
}

func TestAdminSweepAndPause(t *testing.T) {
	h := newHarness(t, RateLimit{})
	adminToken := h.token(t, admin, [20]byte{})
	buyerToken := h.token(t, buyer, [20]byte{})
	h.configure(t, adminToken)

	rec := h.do(t, http.MethodPost, "/v1/stake/deposit", buyerToken, depositRequest{Participant: "buyer-1", Amount: "1000"})
	require.Equal(t, http.StatusOK, rec.Code)

	requireErrorCode(t, h.do(t, http.MethodPost, "/v1/admin/stake/sweep", buyerToken, nil), http.StatusForbidden, stake.CodeUnauthorized)
	requireErrorCode(t, h.do(t, http.MethodPost, "/v1/admin/stake/sweep", adminToken, nil), http.StatusBadRequest, stake.CodeInvalidAddress)

	rec = h.do(t, http.MethodPut, "/v1/admin/stake/funding-address", adminToken, addressRequest{Address: crypto.FormatAddress(funding)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/v1/admin/stake/sweep", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sweep := decode[sweepResult](t, rec)
	require.Equal(t, "150", sweep.Amount)
	bal, err := h.ledger.BalanceOf(funding)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(150), bal)

	requireErrorCode(t, h.do(t, http.MethodPost, "/v1/admin/stake/sweep", adminToken, nil), http.StatusConflict, stake.CodeNothingToSweep)

	rec = h.do(t, http.MethodPost, "/v1/admin/stake/pause", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, decode[pauseResult](t, rec).Paused)
	rec = h.do(t, http.MethodPost, "/v1/stake/deposit", buyerToken, depositRequest{Participant: "buyer-1", Amount: "10"})
	requireErrorCode(t, rec, http.StatusLocked, stake.CodePaused)

	rec = h.do(t, http.MethodPost, "/v1/admin/stake/unpause", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decode[pauseResult](t, rec).Paused)

	requireErrorCode(t, h.do(t, http.MethodPost, "/v1/admin/ledger/pause", adminToken, nil), http.StatusNotFound, codeNotFound)
	requireErrorCode(t, h.do(t, http.MethodPost, "/v1/admin/stake/freeze", adminToken, nil), http.StatusNotFound, codeNotFound)
}

func TestRewardClaimOverHTTP(t *testing.T) {
	h := newHarness(t, RateLimit{})
	adminToken := h.token(t, admin, [20]byte{})
	buyerToken := h.token(t, buyer, [20]byte{})

	rec := h.do(t, http.MethodPost, "/v1/admin/rewards/epoch", buyerToken, epochRequest{Epoch: 3})
	requireErrorCode(t, rec, http.StatusForbidden, rewards.CodeUnauthorized)
	rec = h.do(t, http.MethodPost, "/v1/admin/rewards/epoch", adminToken, epochRequest{Epoch: 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/v1/rewards/epoch", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	epoch := decode[epochResult](t, rec)
	require.Equal(t, uint64(3), epoch.CurrentEpoch)
	require.Equal(t, crypto.FormatAddress(h.signer.PubKey().Address().Array()), epoch.TrustedSigner)

	digest := h.server.rewards.Digest("participant-1", big.NewInt(700), 3)
	sig, err := crypto.SignDigest(h.signer, digest)
	require.NoError(t, err)
	claim := claimRequest{Participant: "participant-1", Amount: "700", Epoch: 3, Signature: "0x" + hex.EncodeToString(sig)}

	rec = h.do(t, http.MethodPost, "/v1/rewards/claim", buyerToken, claim)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[claimResult](t, rec)
	require.Equal(t, crypto.FormatAddress(buyer), result.Recipient)
	bal, err := h.ledger.BalanceOf(buyer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10_700), bal)

	rec = h.do(t, http.MethodPost, "/v1/rewards/claim", buyerToken, claim)
	requireErrorCode(t, rec, http.StatusConflict, rewards.CodeAlreadyClaimed)

	rec = h.do(t, http.MethodGet, "/v1/rewards/participants/participant-1", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[participantResult](t, rec)
	require.True(t, status.Claimed)
	require.Equal(t, uint64(3), status.LastClaimedEpoch)

	tampered := claim
	tampered.Participant = "participant-2"
	requireErrorCode(t, h.do(t, http.MethodPost, "/v1/rewards/claim", buyerToken, tampered), http.StatusForbidden, rewards.CodeInvalidSignature)

	tampered.Signature = "zz"
	requireErrorCode(t, h.do(t, http.MethodPost, "/v1/rewards/claim", buyerToken, tampered), http.StatusForbidden, rewards.CodeInvalidSignature)
}

func TestRateLimitPerCaller(t *testing.T) {
	h := newHarness(t, RateLimit{PerSecond: 0.001, Burst: 1})
	buyerToken := h.token(t, buyer, [20]byte{})
	adminToken := h.token(t, admin, [20]byte{})

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/v1/stake/pools", buyerToken, nil).Code)
	requireErrorCode(t, h.do(t, http.MethodGet, "/v1/stake/pools", buyerToken, nil), http.StatusTooManyRequests, codeRateLimited)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/v1/stake/pools", adminToken, nil).Code)
}

func TestStatusForCode(t *testing.T) {
	require.Equal(t, http.StatusLocked, statusForCode(rewards.CodePaused))
	require.Equal(t, http.StatusConflict, statusForCode(rewards.CodeEpochExpired))
	require.Equal(t, http.StatusInternalServerError, statusForCode("Internal"))
	require.Equal(t, rewards.CodeEpochAlreadySet, ledgerErrorCode(rewards.ErrEpochAlreadySet))
	require.Equal(t, stake.CodeReentrant, ledgerErrorCode(common.ErrReentrant))
}
