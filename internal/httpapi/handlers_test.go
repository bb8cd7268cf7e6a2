package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jikoent/cipher-squad-backend/internal/auth"
	"github.com/jikoent/cipher-squad-backend/internal/store"
	"github.com/jikoent/cipher-squad-backend/internal/vault"
	"github.com/jikoent/cipher-squad-backend/pkg/types"
)

// fakeStore implements the conditional-update contract in memory: every
// mutation is a compare-and-set under one mutex, mirroring what the SQL
// store does with conditional UPDATEs.
type fakeStore struct {
	mu    sync.Mutex
	tiles map[string]*vault.Tile
	sols  map[string][][]int
}

func newFakeStore(tiles ...vault.Tile) *fakeStore {
	fs := &fakeStore{tiles: map[string]*vault.Tile{}, sols: map[string][][]int{}}
	for i := range tiles {
		t := tiles[i]
		fs.tiles[t.ID] = &t
		if len(t.Data.SolutionGrid) > 0 {
			fs.sols[t.ID] = t.Data.SolutionGrid
		}
	}
	return fs
}

func (f *fakeStore) FetchVault(ctx context.Context, periodKey string) (vault.Vault, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := vault.Vault{Date: periodKey}
	for _, t := range f.tiles {
		v.Grid = append(v.Grid, *t)
	}
	return v, nil
}

func (f *fakeStore) Claim(ctx context.Context, tileID, userID string, now int64) (*vault.Tile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tiles[tileID]
	if !ok {
		return nil, nil
	}
	open := t.Status == vault.StatusOpen ||
		(t.Status == vault.StatusClaimed && t.LockExpiry < now)
	if !open {
		return nil, nil
	}
	t.Status = vault.StatusClaimed
	t.ClaimedBy = userID
	t.LockExpiry = now + vault.LockDurationMS
	out := *t
	return &out, nil
}

func (f *fakeStore) Release(ctx context.Context, tileID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tiles[tileID]
	if !ok || t.Status != vault.StatusClaimed || t.ClaimedBy != userID {
		return nil
	}
	t.Status = vault.StatusOpen
	t.ClaimedBy = ""
	t.LockExpiry = 0
	return nil
}

func (f *fakeStore) Solve(ctx context.Context, tileID, userID string, now int64) (*vault.Tile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tiles[tileID]
	if !ok || t.Status != vault.StatusClaimed || t.ClaimedBy != userID {
		return nil, nil
	}
	t.Status = vault.StatusSolved
	t.ClaimedBy = ""
	t.LockExpiry = 0
	t.CompletedBy = userID
	t.CompletedAt = now
	out := *t
	return &out, nil
}

func (f *fakeStore) GetActiveLockForUser(ctx context.Context, userID string, now int64) (*vault.Tile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tiles {
		if t.Status == vault.StatusClaimed && t.ClaimedBy == userID && t.LockExpiry > now {
			out := *t
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetSolution(ctx context.Context, tileID string) ([][]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sols[tileID], nil
}

func (f *fakeStore) Leaderboard(ctx context.Context, periodKey string) ([]store.LeaderboardEntry, error) {
	return []store.LeaderboardEntry{{UserID: "userA", Score: 3}, {UserID: "userB", Score: 1}}, nil
}

type fakeSeeder struct{ calls int }

func (f *fakeSeeder) SeedToday(ctx context.Context, now time.Time) (int, error) {
	f.calls++
	return 9, nil
}

var testSolution = [][]int{{1, 0}, {0, 1}}

func testDeps(fs *fakeStore) Deps {
	return Deps{
		Store:    fs,
		Seeder:   &fakeSeeder{},
		AdminKey: "sekrit",
		Log:      zap.NewNop(),
		Now:      func() time.Time { return time.UnixMilli(1_000_000) },
	}
}

func doJSON(t *testing.T, h http.HandlerFunc, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestClaimRequiresIdentity(t *testing.T) {
	fs := newFakeStore(vault.Tile{ID: "t1", Status: vault.StatusOpen})
	w := doJSON(t, ClaimTile(testDeps(fs)), "", types.ClaimRequest{TileID: "t1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClaimRejectsSecondLock(t *testing.T) {
	fs := newFakeStore(
		vault.Tile{ID: "t1", Status: vault.StatusClaimed, ClaimedBy: "userA", LockExpiry: 2_000_000},
		vault.Tile{ID: "t2", Status: vault.StatusOpen},
	)
	w := doJSON(t, ClaimTile(testDeps(fs)), "userA", types.ClaimRequest{TileID: "t2"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "USER_HAS_ACTIVE_LOCK", resp.Error)
}

func TestClaimAfterSolveIsAllowed(t *testing.T) {
	// A solved tile is not an active lock; the user may claim the next one.
	fs := newFakeStore(
		vault.Tile{ID: "t1", Status: vault.StatusSolved, CompletedBy: "userA"},
		vault.Tile{ID: "t2", Status: vault.StatusOpen},
	)
	w := doJSON(t, ClaimTile(testDeps(fs)), "userA", types.ClaimRequest{TileID: "t2"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestClaimConflict(t *testing.T) {
	fs := newFakeStore(vault.Tile{ID: "t1", Status: vault.StatusClaimed, ClaimedBy: "userB", LockExpiry: 2_000_000})
	w := doJSON(t, ClaimTile(testDeps(fs)), "userA", types.ClaimRequest{TileID: "t1"})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestClaimExpiredLockIsReclaimable(t *testing.T) {
	// userB's lock expired; userA claims without any sweep in between.
	fs := newFakeStore(vault.Tile{ID: "t1", Status: vault.StatusClaimed, ClaimedBy: "userB", LockExpiry: 999_999})
	w := doJSON(t, ClaimTile(testDeps(fs)), "userA", types.ClaimRequest{TileID: "t1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.TileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "userA", resp.Data.ClaimedBy)
	require.Equal(t, int64(1_000_000+vault.LockDurationMS), resp.Data.LockExpiry)
}

func TestConcurrentClaimsExactlyOneWins(t *testing.T) {
	fs := newFakeStore(vault.Tile{ID: "t1", Status: vault.StatusOpen})
	d := testDeps(fs)

	const attempts = 32
	codes := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		userID := "user" + string(rune('A'+i%26))
		go func(u string) {
			defer wg.Done()
			w := doJSON(t, ClaimTile(d), u, types.ClaimRequest{TileID: "t1"})
			codes <- w.Code
		}(userID)
	}
	wg.Wait()
	close(codes)

	wins := 0
	for code := range codes {
		switch code {
		case http.StatusOK:
			wins++
		case http.StatusConflict, http.StatusTooManyRequests:
			// expected contention outcomes
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	require.Equal(t, 1, wins, "exactly one concurrent claim may succeed")
}

func TestSolveValidatesServerSide(t *testing.T) {
	fs := newFakeStore(vault.Tile{
		ID: "t1", Status: vault.StatusClaimed, ClaimedBy: "userA", LockExpiry: 2_000_000,
		Data: vault.PuzzleData{SolutionGrid: testSolution},
	})
	d := testDeps(fs)

	w := doJSON(t, SolveTile(d), "userA", types.SolveRequest{TileID: "t1", Solution: [][]int{{0, 1}, {1, 0}}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "INVALID_SOLUTION", resp.Error)
}

func TestSolveHappyPathAndTerminality(t *testing.T) {
	fs := newFakeStore(vault.Tile{
		ID: "t1", Status: vault.StatusClaimed, ClaimedBy: "userA", LockExpiry: 2_000_000,
		Data: vault.PuzzleData{SolutionGrid: testSolution},
	})
	d := testDeps(fs)

	w := doJSON(t, SolveTile(d), "userA", types.SolveRequest{TileID: "t1", Solution: testSolution})
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.SolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "SHARD_FOUND", resp.Data.Reward)

	// SOLVED is terminal: neither claim nor a second solve touches the tile.
	w = doJSON(t, SolveTile(d), "userA", types.SolveRequest{TileID: "t1", Solution: testSolution})
	require.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(t, ClaimTile(d), "userB", types.ClaimRequest{TileID: "t1"})
	require.Equal(t, http.StatusConflict, w.Code)

	solved, _ := fs.Solve(context.Background(), "t1", "userB", 3_000_000)
	require.Nil(t, solved)
	tile := fs.tiles["t1"]
	require.Equal(t, "userA", tile.CompletedBy)
}

func TestSolveWrongOwner(t *testing.T) {
	fs := newFakeStore(vault.Tile{
		ID: "t1", Status: vault.StatusClaimed, ClaimedBy: "userB", LockExpiry: 2_000_000,
		Data: vault.PuzzleData{SolutionGrid: testSolution},
	})
	w := doJSON(t, SolveTile(testDeps(fs)), "userA", types.SolveRequest{TileID: "t1", Solution: testSolution})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestSolveMissingSolutionBody(t *testing.T) {
	fs := newFakeStore(vault.Tile{ID: "t1", Status: vault.StatusClaimed, ClaimedBy: "userA"})
	w := doJSON(t, SolveTile(testDeps(fs)), "userA", types.SolveRequest{TileID: "t1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReleaseIsOwnerConditional(t *testing.T) {
	fs := newFakeStore(vault.Tile{ID: "t1", Status: vault.StatusClaimed, ClaimedBy: "userB", LockExpiry: 2_000_000})

	// Releasing someone else's tile succeeds as a no-op.
	w := doJSON(t, ReleaseTile(testDeps(fs)), "userA", types.ReleaseRequest{TileID: "t1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, vault.StatusClaimed, fs.tiles["t1"].Status)

	w = doJSON(t, ReleaseTile(testDeps(fs)), "userB", types.ReleaseRequest{TileID: "t1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, vault.StatusOpen, fs.tiles["t1"].Status)
}

func TestGetVaultIsPublic(t *testing.T) {
	fs := newFakeStore(vault.Tile{ID: "t1", Status: vault.StatusOpen})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	GetVault(testDeps(fs))(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.VaultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Grid, 1)
}

func TestLeaderboard(t *testing.T) {
	fs := newFakeStore()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	GetLeaderboard(testDeps(fs))(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.LeaderboardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, []types.LeaderboardEntry{{UserID: "userA", Score: 3}, {UserID: "userB", Score: 1}}, resp.Data)
}

func TestAdminSeedRequiresKey(t *testing.T) {
	fs := newFakeStore()
	d := testDeps(fs)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()
	AdminSeed(d)(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Admin-Key", "sekrit")
	w = httptest.NewRecorder()
	AdminSeed(d)(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
