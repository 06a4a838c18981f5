package store

import (
	"testing"
	"time"

	"github.com/artbox-app/artbox/internal/models"
)

func TestTagCRUD(t *testing.T) {
	s := testStore(t)

	tag := &models.Tag{ID: "t1", Name: "  Sunset  Shots ", Color: "#ff8800"}
	if err := s.CreateTag(tag); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	if tag.Slug != "sunset shots" {
		t.Errorf("Slug = %q, want %q", tag.Slug, "sunset shots")
	}

	got, err := s.GetTag("t1")
	if err != nil {
		t.Fatalf("GetTag() error = %v", err)
	}
	if got == nil || got.Name != tag.Name {
		t.Errorf("GetTag() = %v, want %v", got, tag)
	}

	// Lookup by name is normalization-insensitive.
	got, err = s.GetTagByName("SUNSET   shots")
	if err != nil {
		t.Fatalf("GetTagByName() error = %v", err)
	}
	if got == nil || got.ID != "t1" {
		t.Errorf("GetTagByName() = %v, want t1", got)
	}

	if err := s.DeleteTag("t1"); err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}
	got, err = s.GetTag("t1")
	if err != nil {
		t.Fatalf("GetTag() after delete error = %v", err)
	}
	if got != nil {
		t.Error("tag still present after delete")
	}
}

func TestListTags_Order(t *testing.T) {
	s := testStore(t)

	now := time.Now()
	tags := []*models.Tag{
		{ID: "b", Name: "second", CreatedAt: now.Add(time.Minute)},
		{ID: "a", Name: "first", CreatedAt: now},
	}
	for _, tag := range tags {
		if err := s.CreateTag(tag); err != nil {
			t.Fatalf("CreateTag(%s) error = %v", tag.ID, err)
		}
	}

	got, err := s.ListTags()
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("ListTags() order wrong: %v", got)
	}
}

func TestSetRecordTags(t *testing.T) {
	s := testStore(t)

	tag1 := &models.Tag{ID: "t1", Name: "alpha"}
	tag2 := &models.Tag{ID: "t2", Name: "beta"}
	for _, tag := range []*models.Tag{tag1, tag2} {
		if err := s.CreateTag(tag); err != nil {
			t.Fatalf("CreateTag() error = %v", err)
		}
	}
	if err := s.PutRecord(&models.ImageRecord{UUID: "r1"}); err != nil {
		t.Fatalf("PutRecord() error = %v", err)
	}

	if err := s.SetRecordTags("r1", []models.Tag{*tag1, *tag2}); err != nil {
		t.Fatalf("SetRecordTags() error = %v", err)
	}
	rec, err := s.GetRecord("r1")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if len(rec.Tags) != 2 {
		t.Fatalf("len(Tags) = %d, want 2", len(rec.Tags))
	}

	// Replace shrinks the set.
	if err := s.SetRecordTags("r1", []models.Tag{*tag2}); err != nil {
		t.Fatalf("SetRecordTags() replace error = %v", err)
	}
	rec, _ = s.GetRecord("r1")
	if len(rec.Tags) != 1 || rec.Tags[0].ID != "t2" {
		t.Errorf("Tags = %v, want [t2]", rec.Tags)
	}
}

func TestDeleteTag_StripsRecords(t *testing.T) {
	s := testStore(t)

	tag := &models.Tag{ID: "t1", Name: "orphan-me"}
	if err := s.CreateTag(tag); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	if err := s.PutRecord(&models.ImageRecord{UUID: "r1"}); err != nil {
		t.Fatalf("PutRecord() error = %v", err)
	}
	if err := s.SetRecordTags("r1", []models.Tag{*tag}); err != nil {
		t.Fatalf("SetRecordTags() error = %v", err)
	}

	if err := s.DeleteTag("t1"); err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}

	rec, err := s.GetRecord("r1")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if len(rec.Tags) != 0 {
		t.Errorf("record still references deleted tag: %v", rec.Tags)
	}

	uuids, err := s.RecordUUIDsWithTag("t1")
	if err != nil {
		t.Fatalf("RecordUUIDsWithTag() error = %v", err)
	}
	if len(uuids) != 0 {
		t.Errorf("join rows survived delete: %v", uuids)
	}
}

func TestMergeTags(t *testing.T) {
	s := testStore(t)

	loser := &models.Tag{ID: "local-id", Name: "Sunset"}
	if err := s.CreateTag(loser); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	for _, uuid := range []string{"r1", "r2"} {
		if err := s.PutRecord(&models.ImageRecord{UUID: uuid}); err != nil {
			t.Fatalf("PutRecord(%s) error = %v", uuid, err)
		}
		if err := s.SetRecordTags(uuid, []models.Tag{*loser}); err != nil {
			t.Fatalf("SetRecordTags(%s) error = %v", uuid, err)
		}
	}

	// Winner shares the normalized name, so the unique slug index is in play.
	winner := &models.Tag{ID: "remote-id", Name: "sunset"}
	if err := s.MergeTags("local-id", winner); err != nil {
		t.Fatalf("MergeTags() error = %v", err)
	}

	if got, _ := s.GetTag("local-id"); got != nil {
		t.Error("loser tag survived merge")
	}
	uuids, err := s.RecordUUIDsWithTag("remote-id")
	if err != nil {
		t.Fatalf("RecordUUIDsWithTag() error = %v", err)
	}
	if len(uuids) != 2 {
		t.Errorf("winner references %d records, want 2", len(uuids))
	}
}

func TestMergeTags_RecordWithBoth(t *testing.T) {
	s := testStore(t)

	loser := &models.Tag{ID: "t-loser", Name: "dup a"}
	winner := &models.Tag{ID: "t-winner", Name: "dup b"}
	for _, tag := range []*models.Tag{loser, winner} {
		if err := s.CreateTag(tag); err != nil {
			t.Fatalf("CreateTag() error = %v", err)
		}
	}
	if err := s.PutRecord(&models.ImageRecord{UUID: "r1"}); err != nil {
		t.Fatalf("PutRecord() error = %v", err)
	}
	if err := s.SetRecordTags("r1", []models.Tag{*loser, *winner}); err != nil {
		t.Fatalf("SetRecordTags() error = %v", err)
	}

	if err := s.MergeTags("t-loser", winner); err != nil {
		t.Fatalf("MergeTags() error = %v", err)
	}

	rec, err := s.GetRecord("r1")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if len(rec.Tags) != 1 || rec.Tags[0].ID != "t-winner" {
		t.Errorf("Tags = %v, want just the winner", rec.Tags)
	}
}

func TestMergeTags_SameID(t *testing.T) {
	s := testStore(t)

	tag := &models.Tag{ID: "t1", Name: "stable"}
	if err := s.CreateTag(tag); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	if err := s.MergeTags("t1", tag); err != nil {
		t.Fatalf("MergeTags() same-id error = %v", err)
	}
	if got, _ := s.GetTag("t1"); got == nil {
		t.Error("tag disappeared from a same-id merge")
	}
}

func TestUpdateTagCounts(t *testing.T) {
	s := testStore(t)

	tag1 := &models.Tag{ID: "t1", Name: "one"}
	tag2 := &models.Tag{ID: "t2", Name: "two"}
	for _, tag := range []*models.Tag{tag1, tag2} {
		if err := s.CreateTag(tag); err != nil {
			t.Fatalf("CreateTag() error = %v", err)
		}
	}

	// Three favorites carrying {t1}, {t2}, {t1,t2} plus one non-favorite.
	// Counts reflect favorites exclusively.
	fixtures := []struct {
		uuid     string
		favorite bool
		tags     []models.Tag
	}{
		{"r1", true, []models.Tag{*tag1}},
		{"r2", true, []models.Tag{*tag2}},
		{"r3", true, []models.Tag{*tag1, *tag2}},
		{"r4", false, []models.Tag{*tag2}},
	}
	for _, f := range fixtures {
		if err := s.PutRecord(&models.ImageRecord{UUID: f.uuid, Favorite: f.favorite}); err != nil {
			t.Fatalf("PutRecord(%s) error = %v", f.uuid, err)
		}
		if err := s.SetRecordTags(f.uuid, f.tags); err != nil {
			t.Fatalf("SetRecordTags(%s) error = %v", f.uuid, err)
		}
	}

	if err := s.UpdateTagCounts(); err != nil {
		t.Fatalf("UpdateTagCounts() error = %v", err)
	}

	got1, _ := s.GetTag("t1")
	got2, _ := s.GetTag("t2")
	if got1.ImageCount != 2 {
		t.Errorf("t1 count = %d, want 2", got1.ImageCount)
	}
	if got2.ImageCount != 2 {
		t.Errorf("t2 count = %d, want 2", got2.ImageCount)
	}
}

func TestTombstones(t *testing.T) {
	s := testStore(t)

	if err := s.AddTombstone("t1"); err != nil {
		t.Fatalf("AddTombstone() error = %v", err)
	}
	// Idempotent.
	if err := s.AddTombstone("t1"); err != nil {
		t.Fatalf("AddTombstone() repeat error = %v", err)
	}

	dead, err := s.IsTombstoned("t1")
	if err != nil {
		t.Fatalf("IsTombstoned() error = %v", err)
	}
	if !dead {
		t.Error("IsTombstoned() = false, want true")
	}

	stones, err := s.ListTombstones()
	if err != nil {
		t.Fatalf("ListTombstones() error = %v", err)
	}
	if len(stones) != 1 || !stones["t1"] {
		t.Errorf("ListTombstones() = %v, want {t1}", stones)
	}

	if err := s.ClearTombstone("t1"); err != nil {
		t.Fatalf("ClearTombstone() error = %v", err)
	}
	dead, _ = s.IsTombstoned("t1")
	if dead {
		t.Error("tombstone survived clear")
	}
}
