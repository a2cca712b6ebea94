package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castlink/internal/domain"
	"castlink/internal/service"
	"castlink/internal/store/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "castlink_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func noJob() uuid.NullUUID {
	return uuid.NullUUID{}
}

func job(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: true}
}

func TestResolverIdempotence(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := service.NewConversationService(sqlite.NewConversationRepo(db))

	x, y := uuid.New(), uuid.New()

	first, created, err := svc.FindOrCreate(ctx, x, y, noJob())
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.FindOrCreate(ctx, x, y, noJob())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// unordered pair: swapped arguments resolve to the same conversation
	swapped, created, err := svc.FindOrCreate(ctx, y, x, noJob())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, swapped.ID)
}

func TestJobContextIsolation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := service.NewConversationService(sqlite.NewConversationRepo(db))

	x, y := uuid.New(), uuid.New()
	j1, j2 := uuid.New(), uuid.New()

	general, _, err := svc.FindOrCreate(ctx, x, y, noJob())
	require.NoError(t, err)
	forJ1, _, err := svc.FindOrCreate(ctx, x, y, job(j1))
	require.NoError(t, err)
	forJ2, _, err := svc.FindOrCreate(ctx, x, y, job(j2))
	require.NoError(t, err)

	assert.NotEqual(t, general.ID, forJ1.ID)
	assert.NotEqual(t, general.ID, forJ2.ID)
	assert.NotEqual(t, forJ1.ID, forJ2.ID)

	// the null bucket only matches itself
	again, created, err := svc.FindOrCreate(ctx, x, y, noJob())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, general.ID, again.ID)
}

func TestClosedConversationNotResolved(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := service.NewConversationService(sqlite.NewConversationRepo(db))

	x, y := uuid.New(), uuid.New()
	first, _, err := svc.FindOrCreate(ctx, x, y, noJob())
	require.NoError(t, err)

	// moderation closes the conversation out of band
	_, err = db.ExecContext(ctx, `UPDATE conversations SET status = 'closed' WHERE id = ?`, first.ID)
	require.NoError(t, err)

	fresh, created, err := svc.FindOrCreate(ctx, x, y, noJob())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, fresh.ID)
}

func TestFindOrCreateRace(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := service.NewConversationService(sqlite.NewConversationRepo(db))

	x, y := uuid.New(), uuid.New()
	jobID := job(uuid.New())

	const callers = 16
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[uuid.UUID]int)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, _, err := svc.FindOrCreate(ctx, x, y, jobID)
			assert.NoError(t, err)
			if conv != nil {
				mu.Lock()
				ids[conv.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1, "all callers must resolve to the same conversation")

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE participant_a = ? OR participant_b = ?`,
		x, x).Scan(&count))
	assert.Equal(t, 1, count, "exactly one row for the contested key")
}

func TestUnreadAccountingAndSummary(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	convSvc := service.NewConversationService(convRepo)
	msgSvc := service.NewMessageService(convRepo, sqlite.NewMessageRepo(db), 100)

	a, b := uuid.New(), uuid.New()
	conv, _, err := convSvc.FindOrCreate(ctx, a, b, noJob())
	require.NoError(t, err)

	const k = 3
	var last *domain.Message
	for i := 0; i < k; i++ {
		last, err = msgSvc.Append(ctx, service.AppendInput{ConversationID: conv.ID, Content: "ping"}, a)
		require.NoError(t, err)
	}

	got, err := convSvc.Get(ctx, conv.ID, a)
	require.NoError(t, err)
	assert.Equal(t, k, got.UnreadFor(b))
	assert.Equal(t, 0, got.UnreadFor(a))
	assert.Equal(t, "ping", got.LastMessageText)
	require.True(t, got.LastMessageSender.Valid)
	assert.Equal(t, a, got.LastMessageSender.UUID)
	assert.WithinDuration(t, last.CreatedAt, got.LastMessageAt, time.Second)

	// viewing resets only the viewer's counter
	require.NoError(t, convSvc.MarkViewed(ctx, conv.ID, b))
	got, err = convSvc.Get(ctx, conv.ID, b)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadFor(b))
}

func TestHideIndependence(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)
	convSvc := service.NewConversationService(convRepo)
	msgSvc := service.NewMessageService(convRepo, msgRepo, 100)

	a, b := uuid.New(), uuid.New()
	conv, _, err := convSvc.FindOrCreate(ctx, a, b, noJob())
	require.NoError(t, err)
	msg, err := msgSvc.Append(ctx, service.AppendInput{ConversationID: conv.ID, Content: "hello"}, a)
	require.NoError(t, err)

	require.NoError(t, convSvc.Hide(ctx, conv.ID, a))
	// idempotent
	require.NoError(t, convSvc.Hide(ctx, conv.ID, a))

	forA, err := convSvc.ListVisible(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, forA)

	forB, err := convSvc.ListVisible(ctx, b)
	require.NoError(t, err)
	require.Len(t, forB, 1)
	assert.Equal(t, conv.ID, forB[0].ID)

	// the message history is untouched
	got, err := msgRepo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
}

func TestListVisibleOrdering(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	convSvc := service.NewConversationService(convRepo)
	msgSvc := service.NewMessageService(convRepo, sqlite.NewMessageRepo(db), 100)

	a := uuid.New()
	first, _, err := convSvc.FindOrCreate(ctx, a, uuid.New(), noJob())
	require.NoError(t, err)
	second, _, err := convSvc.FindOrCreate(ctx, a, uuid.New(), noJob())
	require.NoError(t, err)

	// touch the older conversation so it surfaces first
	time.Sleep(10 * time.Millisecond)
	_, err = msgSvc.Append(ctx, service.AppendInput{ConversationID: first.ID, Content: "bump"}, a)
	require.NoError(t, err)

	convs, err := convSvc.ListVisible(ctx, a)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, first.ID, convs[0].ID)
	assert.Equal(t, second.ID, convs[1].ID)
}

func TestMessageTieBreakBySeq(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)
	convSvc := service.NewConversationService(convRepo)

	a, b := uuid.New(), uuid.New()
	conv, _, err := convSvc.FindOrCreate(ctx, a, b, noJob())
	require.NoError(t, err)

	// force identical timestamps so only seq decides the order
	at := time.Now().UTC()
	firstID, secondID := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{firstID, secondID} {
		_, err = db.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, recipient_id, content, created_at)
			VALUES (?, ?, ?, ?, 'tied', ?)
		`, id, conv.ID, a, b, at)
		require.NoError(t, err)
	}

	msgs, err := msgRepo.ListForConversation(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, secondID, msgs[0].ID, "newest first means the later insert leads")
	assert.Equal(t, firstID, msgs[1].ID)
	assert.Greater(t, msgs[0].Seq, msgs[1].Seq)
}

// TestApplyAndMessageScenario walks the full product flow: talent applies to
// a creator's job, messages them, gets a reply, then archives the thread.
func TestApplyAndMessageScenario(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	profileRepo := sqlite.NewProfileRepo(db)
	applicationRepo := sqlite.NewApplicationRepo(db)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)

	permSvc := service.NewPermissionService(profileRepo, applicationRepo)
	convSvc := service.NewConversationService(convRepo)
	msgSvc := service.NewMessageService(convRepo, msgRepo, 100)

	talent := &domain.Participant{ID: uuid.New(), Role: domain.RoleTalent}
	creator := &domain.Participant{ID: uuid.New(), Role: domain.RoleCreator}
	require.NoError(t, profileRepo.Upsert(ctx, talent))
	require.NoError(t, profileRepo.Upsert(ctx, creator))

	jobID := uuid.New()
	require.NoError(t, applicationRepo.Record(ctx, jobID, talent.ID))

	decision, err := permSvc.CanInitiate(ctx, talent.ID, creator.ID, job(jobID))
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	conv, created, err := convSvc.FindOrCreate(ctx, talent.ID, creator.ID, job(jobID))
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, talent.ID, conv.Initiator)

	_, err = msgSvc.Append(ctx, service.AppendInput{ConversationID: conv.ID, Content: "I've applied to your casting call"}, talent.ID)
	require.NoError(t, err)

	got, err := convSvc.Get(ctx, conv.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadFor(creator.ID))
	assert.Equal(t, talent.ID, got.LastMessageSender.UUID)

	// opening the thread resets the creator's counter, then they reply
	require.NoError(t, convSvc.MarkViewed(ctx, conv.ID, creator.ID))
	_, err = msgSvc.Append(ctx, service.AppendInput{ConversationID: conv.ID, Content: "Thanks, let's talk"}, creator.ID)
	require.NoError(t, err)

	got, err = convSvc.Get(ctx, conv.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadFor(talent.ID))
	assert.Equal(t, 0, got.UnreadFor(creator.ID), "own reply must not touch own counter")

	require.NoError(t, convSvc.Hide(ctx, conv.ID, talent.ID))

	forTalent, err := convSvc.ListVisible(ctx, talent.ID)
	require.NoError(t, err)
	assert.Empty(t, forTalent)

	forCreator, err := convSvc.ListVisible(ctx, creator.ID)
	require.NoError(t, err)
	require.Len(t, forCreator, 1)

	msgs, err := msgSvc.ListMessages(ctx, conv.ID, creator.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, talent.ID, msgs[0].SenderID)
	assert.Equal(t, creator.ID, msgs[1].SenderID)
}
