package event

import (
	"encoding/json"
	"testing"
	"time"
)

// TestNew はNew関数でイベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("PostPublishedDataでイベントを正常に生成できること", func(t *testing.T) {
		t.Parallel()

		data := PostPublishedData{
			PostID:   "post-1",
			Title:    "Potions 101",
			Slug:     "potions-101",
			Category: "potions",
			AuthorID: "user-1",
		}

		before := time.Now().UTC()
		ev, err := NewPostPublished(data)
		after := time.Now().UTC()

		if err != nil {
			t.Fatalf("NewPostPublished()でエラーが発生: %v", err)
		}
		if ev.ID == "" {
			t.Error("IDが空文字列")
		}
		if ev.AggregateID != "post-post-1" {
			t.Errorf("AggregateID = %q, want %q", ev.AggregateID, "post-post-1")
		}
		if ev.AggregateType != AggregateTypePost {
			t.Errorf("AggregateType = %q, want %q", ev.AggregateType, AggregateTypePost)
		}
		if ev.EventType != TypePostPublished {
			t.Errorf("EventType = %q, want %q", ev.EventType, TypePostPublished)
		}
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		var decoded PostPublishedData
		if err := json.Unmarshal(ev.Data, &decoded); err != nil {
			t.Fatalf("Dataのデシリアライズに失敗: %v", err)
		}
		if decoded != data {
			t.Errorf("Data = %+v, want %+v", decoded, data)
		}
	})

	t.Run("連続して生成したイベントのIDが異なること", func(t *testing.T) {
		t.Parallel()

		ev1, err := New("post-1", AggregateTypePost, TypePostPublished, map[string]string{})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		ev2, err := New("post-1", AggregateTypePost, TypePostPublished, map[string]string{})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if ev1.ID == ev2.ID {
			t.Errorf("IDが重複: %s", ev1.ID)
		}
	})

	t.Run("シリアライズ不可能なデータでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		_, err := New("post-1", AggregateTypePost, TypePostPublished, make(chan int))
		if err == nil {
			t.Fatal("エラーが返らなかった")
		}
	})
}

// TestDecodeData はDecodeData関数を検証する。
func TestDecodeData(t *testing.T) {
	t.Parallel()

	t.Run("NewとDecodeDataのラウンドトリップが成功すること", func(t *testing.T) {
		t.Parallel()

		data := PostPublishedData{PostID: "p", Title: "t", Slug: "s", Category: "c", AuthorID: "a"}
		ev, err := NewPostPublished(data)
		if err != nil {
			t.Fatalf("NewPostPublished()でエラーが発生: %v", err)
		}

		got, err := DecodeData[PostPublishedData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if *got != data {
			t.Errorf("got %+v, want %+v", *got, data)
		}
	})

	t.Run("不正なJSONデータでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ev := &Event{Data: json.RawMessage(`{invalid`)}
		if _, err := DecodeData[PostPublishedData](ev); err == nil {
			t.Fatal("エラーが返らなかった")
		}
	})
}
