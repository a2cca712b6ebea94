package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"castlink/internal/domain"
	"castlink/internal/service"
)

type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Append(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepo) ListForConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	low, high := orderedPair(t)
	conv := &domain.Conversation{ID: uuid.New(), ParticipantA: low, ParticipantB: high, Status: domain.ConversationActive}

	t.Run("RecipientIsOtherSlot", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, conv.ID).Return(conv, nil)
		msgs := new(MockMessageRepo)
		msgs.On("Append", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
			return m.SenderID == low && m.RecipientID == high && m.Content == "hello"
		})).Return(nil)
		svc := service.NewMessageService(convs, msgs, 100)

		msg, err := svc.Append(ctx, service.AppendInput{ConversationID: conv.ID, Content: "hello"}, low)
		assert.NoError(t, err)
		assert.Equal(t, high, msg.RecipientID)
		assert.NotEqual(t, uuid.Nil, msg.ID)
	})

	t.Run("NonParticipantForbidden", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, conv.ID).Return(conv, nil)
		svc := service.NewMessageService(convs, new(MockMessageRepo), 100)

		_, err := svc.Append(ctx, service.AppendInput{ConversationID: conv.ID, Content: "hi"}, uuid.New())
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("EmptyMessageRejectedBeforeStore", func(t *testing.T) {
		convs := new(MockConversationRepo)
		svc := service.NewMessageService(convs, new(MockMessageRepo), 100)

		_, err := svc.Append(ctx, service.AppendInput{ConversationID: conv.ID}, low)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		convs.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("AttachmentOnlyAllowed", func(t *testing.T) {
		url := "/api/attachments/headshot.jpg"
		kind := domain.AttachmentImage
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, conv.ID).Return(conv, nil)
		msgs := new(MockMessageRepo)
		msgs.On("Append", mock.Anything, mock.Anything).Return(nil)
		svc := service.NewMessageService(convs, msgs, 100)

		msg, err := svc.Append(ctx, service.AppendInput{
			ConversationID: conv.ID,
			AttachmentURL:  &url,
			AttachmentKind: &kind,
		}, high)
		assert.NoError(t, err)
		assert.Equal(t, low, msg.RecipientID)
		assert.Equal(t, &url, msg.AttachmentURL)
	})

	t.Run("UnknownAttachmentKind", func(t *testing.T) {
		url := "/api/attachments/x.bin"
		kind := "video"
		svc := service.NewMessageService(new(MockConversationRepo), new(MockMessageRepo), 100)

		_, err := svc.Append(ctx, service.AppendInput{
			ConversationID: conv.ID,
			AttachmentURL:  &url,
			AttachmentKind: &kind,
		}, low)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("OverlongContent", func(t *testing.T) {
		svc := service.NewMessageService(new(MockConversationRepo), new(MockMessageRepo), 100)

		_, err := svc.Append(ctx, service.AppendInput{
			ConversationID: conv.ID,
			Content:        strings.Repeat("x", service.MaxContentLen+1),
		}, low)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("UnknownConversation", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, mock.Anything).Return(nil, nil)
		svc := service.NewMessageService(convs, new(MockMessageRepo), 100)

		_, err := svc.Append(ctx, service.AppendInput{ConversationID: uuid.New(), Content: "hi"}, low)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestListMessages(t *testing.T) {
	ctx := context.Background()
	low, high := orderedPair(t)
	conv := &domain.Conversation{ID: uuid.New(), ParticipantA: low, ParticipantB: high, Status: domain.ConversationActive}

	t.Run("ChronologicalOrder", func(t *testing.T) {
		newest := &domain.Message{ID: uuid.New(), Seq: 2}
		oldest := &domain.Message{ID: uuid.New(), Seq: 1}

		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, conv.ID).Return(conv, nil)
		msgs := new(MockMessageRepo)
		msgs.On("ListForConversation", mock.Anything, conv.ID, 100).Return([]*domain.Message{newest, oldest}, nil)
		svc := service.NewMessageService(convs, msgs, 100)

		got, err := svc.ListMessages(ctx, conv.ID, low, 0)
		assert.NoError(t, err)
		assert.Equal(t, []*domain.Message{oldest, newest}, got)
	})

	t.Run("NonParticipantForbidden", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, conv.ID).Return(conv, nil)
		svc := service.NewMessageService(convs, new(MockMessageRepo), 100)

		_, err := svc.ListMessages(ctx, conv.ID, uuid.New(), 0)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
