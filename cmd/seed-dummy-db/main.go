package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/repository"
)

func main() {
	// Default to a dummy database in the current directory
	dbPath := "dummy_support.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	fmt.Printf("Using database at: %s\n", dbPath)

	db, err := initDatabase(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Delete all messages but keep sessions
	ctx := context.Background()
	if err := db.WithContext(ctx).Exec("DELETE FROM messages").Error; err != nil {
		log.Fatalf("Failed to delete messages: %v", err)
	}
	fmt.Println("Deleted all messages from database")

	if err := seedDummyData(db); err != nil {
		log.Fatalf("Failed to seed dummy data: %v", err)
	}

	fmt.Println("Successfully regenerated messages for all sessions!")
	fmt.Printf("Database location: %s\n", dbPath)
}

func initDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL")

	err = db.AutoMigrate(
		&repository.MessageModel{},
		&repository.SessionModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func seedDummyData(db *gorm.DB) error {
	customerNames := []string{
		"Alice Johnson",
		"Bob Smith",
		"Charlie Brown",
		"Diana Prince",
		"Eve Wilson",
		"Frank Miller",
		"Grace Lee",
	}

	guestLabels := []string{
		"Guest #4821",
		"Guest #5173",
		"Guest #6090",
	}

	customerTexts := []string{
		"Hi, where is my order?",
		"The tracking page says delivered but nothing arrived",
		"Can I change the shipping address?",
		"Is this item back in stock soon?",
		"I was charged twice for the same order",
		"Does this ship internationally?",
		"The discount code is not applying at checkout",
		"Can I return an item after 30 days?",
		"The size chart seems off, can you help?",
		"My package arrived damaged",
	}

	adminTexts := []string{
		"Hi! Let me look into that for you.",
		"I've checked with the warehouse, it ships tomorrow.",
		"Sorry about that, I've issued a refund.",
		"Done! You should see the update shortly.",
		"Could you share your order number?",
		"That item restocks next week.",
		"I've updated the address on the order.",
		"No problem, I've extended the return window.",
		"Thanks for your patience!",
		"Anything else I can help with?",
	}

	adminID := "admin-1"
	adminName := "Support Team"

	sessRepo := repository.NewSessionRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	ctx := context.Background()

	// Reuse existing sessions when present so re-seeding keeps IDs stable
	sessions, err := sessRepo.GetAll(ctx, 100, 0)
	if err != nil || len(sessions) == 0 {
		fmt.Println("No existing sessions found, creating new sessions...")
		sessions = nil
		for i, name := range customerNames {
			sess := domain.NewSession(fmt.Sprintf("sess-%d", i+1), domain.ParticipantCustomer, name)
			sessions = append(sessions, sess)
		}
		for i, label := range guestLabels {
			sess := domain.NewSession(fmt.Sprintf("sess-%d", len(customerNames)+i+1), domain.ParticipantGuest, label)
			sessions = append(sessions, sess)
		}
		for _, sess := range sessions {
			if err := sessRepo.Upsert(ctx, sess); err != nil {
				return fmt.Errorf("failed to create session %s: %w", sess.ID, err)
			}
		}
	} else {
		fmt.Printf("Found %d existing sessions, will regenerate messages for them\n", len(sessions))
	}

	now := time.Now()

	for _, sess := range sessions {
		// Generate 8-14 messages per session, alternating loosely between
		// the participant and the admin
		numMessages := 8 + rand.Intn(7)

		daysAgo := 1 + rand.Intn(3)
		messageAt := now.Add(-time.Duration(daysAgo) * 24 * time.Hour)

		var messages []*domain.Message
		for j := 0; j < numMessages; j++ {
			if j > 0 {
				intervalMinutes := 5 + rand.Intn(55)
				messageAt = messageAt.Add(time.Duration(intervalMinutes) * time.Minute)
				if messageAt.After(now) {
					messageAt = now.Add(-time.Duration(rand.Intn(30)) * time.Minute)
				}
			}

			fromAdmin := j%2 == 1
			msg := &domain.Message{
				ID:        uuid.NewString(),
				State:     domain.MessageConfirmed,
				SessionID: sess.ID,
				CreatedAt: messageAt,
			}

			if fromAdmin {
				id := adminID
				msg.SenderType = domain.SenderAdmin
				msg.SenderID = &id
				msg.SenderName = adminName
				msg.Text = adminTexts[rand.Intn(len(adminTexts))]
			} else {
				msg.SenderType = domain.SenderType(sess.ParticipantKind)
				msg.SenderName = sess.ParticipantName
				msg.Text = customerTexts[rand.Intn(len(customerTexts))]
				if sess.ParticipantKind == domain.ParticipantCustomer {
					id := "cust-" + sess.ID
					msg.SenderID = &id
				}
			}

			// Messages from the participant stay unread near the end of
			// the thread so the unread badge has something to show
			if fromAdmin || j < numMessages-3 {
				readAt := messageAt.Add(time.Minute)
				msg.ReadAt = &readAt
			}

			messages = append(messages, msg)
		}

		for _, msg := range messages {
			if err := msgRepo.CreateOrIgnore(ctx, msg); err != nil {
				return fmt.Errorf("failed to create message: %w", err)
			}
		}

		unread := 0
		for _, msg := range messages {
			if msg.SenderType != domain.SenderAdmin && msg.ReadAt == nil {
				unread++
			}
		}

		last := messages[len(messages)-1]
		sess.Touch(last.Text, last.SenderName, last.CreatedAt)
		sess.UnreadCount = unread

		if err := sessRepo.Upsert(ctx, sess); err != nil {
			return fmt.Errorf("failed to update session %s: %w", sess.ID, err)
		}

		fmt.Printf("Seeded session: %s (%s) with %d messages (unread: %d)\n",
			sess.ParticipantName, sess.ParticipantKind, numMessages, sess.UnreadCount)
	}

	return nil
}
