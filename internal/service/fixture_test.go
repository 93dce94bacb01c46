package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"localpulse/internal/moderation"
	"localpulse/internal/realtime"
	"localpulse/internal/repository"
	"localpulse/internal/storage"
	"localpulse/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixture wires every service against one in-memory database.
type fixture struct {
	db      *gorm.DB
	store   *repository.Store
	broker  *realtime.LocalBroker
	objects *storage.LocalStore

	users         repository.UserRepository
	contents      repository.ContentRepository
	likes         repository.LikeRepository
	follows       repository.FollowRepository
	comments      repository.CommentRepository
	drafts        repository.DraftRepository
	notifications repository.NotificationRepository

	notify     *NotificationService
	graph      *GraphService
	engagement *EngagementService
	feed       *FeedService
	publish    *PublishService
	content    *ContentService
	user       *UserService
}

type fixtureOptions struct {
	batchMaxOps int
	chunkSize   int
	classifier  moderation.Classifier
}

func newFixture(t *testing.T, opts ...func(*fixtureOptions)) *fixture {
	t.Helper()
	o := fixtureOptions{batchMaxOps: 500, chunkSize: 400}
	for _, opt := range opts {
		opt(&o)
	}

	db := testutil.NewDB(t)
	objects, err := storage.NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)

	f := &fixture{
		db:            db,
		store:         repository.NewStore(db, o.batchMaxOps),
		broker:        realtime.NewLocalBroker(),
		objects:       objects,
		users:         repository.NewUserRepository(db),
		contents:      repository.NewContentRepository(db),
		likes:         repository.NewLikeRepository(db),
		follows:       repository.NewFollowRepository(db),
		comments:      repository.NewCommentRepository(db),
		drafts:        repository.NewDraftRepository(db),
		notifications: repository.NewNotificationRepository(db),
	}
	t.Cleanup(func() { _ = f.broker.Close() })
	publisher := realtime.NewPublisher(f.broker)

	f.user = NewUserService(f.store, f.users, f.follows, f.contents, objects)
	f.notify = NewNotificationService(f.store, f.notifications, f.follows, publisher, f.user.IsAdmin,
		FanOutOptions{ChunkSize: o.chunkSize, Concurrency: 2})
	f.graph = NewGraphService(f.store, f.follows, f.users, f.notify, publisher)
	f.engagement = NewEngagementService(f.store, f.contents, f.likes, f.comments, f.users, f.notify, publisher, f.user.IsAdmin)
	f.feed = NewFeedService(f.contents, f.users, FeedOptions{
		Categories: []string{"Politics", "Sports", "Health"},
	})
	gate := moderation.NewGate(o.classifier, time.Second, 200)
	f.publish = NewPublishService(f.store, f.drafts, f.contents, f.users, f.notify, gate, objects, 1<<20)
	f.content = NewContentService(f.store, f.contents, objects, f.user.IsAdmin)
	return f
}

func withBatchLimit(maxOps, chunkSize int) func(*fixtureOptions) {
	return func(o *fixtureOptions) {
		o.batchMaxOps = maxOps
		o.chunkSize = chunkSize
	}
}

func withClassifier(c moderation.Classifier) func(*fixtureOptions) {
	return func(o *fixtureOptions) { o.classifier = c }
}

// rejectCreates makes every insert into table fail while reject returns true.
func rejectCreates(t *testing.T, db *gorm.DB, table string, reject func(*gorm.DB) bool) {
	t.Helper()
	name := "test:reject_" + table
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table && reject(tx) {
			_ = tx.AddError(errRejected)
		}
	}))
	t.Cleanup(func() { _ = db.Callback().Create().Remove(name) })
}

// rejectQueries makes reads from table fail while reject returns true.
func rejectQueries(t *testing.T, db *gorm.DB, table string, reject func(*gorm.DB) bool) {
	t.Helper()
	name := "test:reject_query_" + table
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table && reject(tx) {
			_ = tx.AddError(errRejected)
		}
	}))
	t.Cleanup(func() { _ = db.Callback().Query().Remove(name) })
}

// rejectDeletes makes every delete from table fail.
func rejectDeletes(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	name := "test:reject_delete_" + table
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errRejected)
		}
	}))
	t.Cleanup(func() { _ = db.Callback().Delete().Remove(name) })
}

var errRejected = errors.New("write rejected by test")

func count(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

var bg = context.Background()
