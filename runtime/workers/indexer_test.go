package workers

import (
	"clchat/domain/chat"
	"clchat/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func textMessage(content string) chat.Message {
	return chat.Message{
		ID:        uuid.New(),
		Sender:    "alice",
		Content:   content,
		Kind:      chat.KindText,
		Timestamp: time.Now().UTC(),
	}
}

func TestIndexerWorker_Flushes_On_Batch_Size(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	index := mocks.NewMockSearchIndex(ctrl)
	flushed := make(chan []chat.Message, 1)
	index.EXPECT().
		Index(gomock.Any()).
		DoAndReturn(func(batch []chat.Message) error {
			flushed <- batch
			return nil
		}).
		Times(1)

	input := make(chan chat.Message, 4)
	worker := NewIndexerWorker(index, input, 2, time.Hour, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	input <- textMessage("one")
	input <- textMessage("two")

	select {
	case batch := <-flushed:
		req.Len(batch, 2)
	case <-time.After(time.Second):
		req.Fail("Batch should have flushed at the size threshold")
	}
}

func TestIndexerWorker_Flushes_On_Interval(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	index := mocks.NewMockSearchIndex(ctrl)
	flushed := make(chan []chat.Message, 1)
	index.EXPECT().
		Index(gomock.Any()).
		DoAndReturn(func(batch []chat.Message) error {
			flushed <- batch
			return nil
		}).
		MinTimes(1)

	input := make(chan chat.Message, 4)
	worker := NewIndexerWorker(index, input, 100, 20*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	input <- textMessage("lonely")

	select {
	case batch := <-flushed:
		req.Len(batch, 1)
	case <-time.After(time.Second):
		req.Fail("Batch should have flushed on the interval")
	}
}

func TestIndexerWorker_Flushes_Pending_On_Shutdown(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	index := mocks.NewMockSearchIndex(ctrl)
	flushed := make(chan []chat.Message, 1)
	index.EXPECT().
		Index(gomock.Any()).
		DoAndReturn(func(batch []chat.Message) error {
			flushed <- batch
			return nil
		}).
		Times(1)

	input := make(chan chat.Message, 4)
	input <- textMessage("pending")
	close(input)

	worker := NewIndexerWorker(index, input, 100, time.Hour, slog.Default())
	req.NoError(worker.Run(context.Background()))

	select {
	case batch := <-flushed:
		req.Len(batch, 1)
	default:
		req.Fail("Pending batch should have flushed on input close")
	}
}

func TestIndexerWorker_Index_Failure_Is_Not_Fatal(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	index := mocks.NewMockSearchIndex(ctrl)
	index.EXPECT().
		Index(gomock.Any()).
		Return(fmt.Errorf("index unavailable")).
		Times(1)

	input := make(chan chat.Message, 4)
	input <- textMessage("doomed")
	close(input)

	worker := NewIndexerWorker(index, input, 100, time.Hour, slog.Default())

	// The batch is lost, the worker finishes cleanly
	req.NoError(worker.Run(context.Background()))
}
