package directory

import (
	"testing"

	"chronolog/internal/logging"
)

func newTestDirectory() *MetaDirectory {
	return New(NewClientRegistry(), logging.NewTestLogger(), nil)
}

func TestCreateChronicleRejectsDuplicate(t *testing.T) {
	d := newTestDirectory()
	if err := d.CreateChronicle("C", nil); err != nil {
		t.Fatalf("CreateChronicle() error = %v", err)
	}
	//1.- A second create under the same name must fail with NameCollision.
	if err := d.CreateChronicle("C", nil); err != ErrChronicleExists {
		t.Fatalf("CreateChronicle() error = %v, want ErrChronicleExists", err)
	}
}

func TestCreateStoryRequiresExistingChronicle(t *testing.T) {
	d := newTestDirectory()
	//1.- Creating a story under a missing chronicle must fail with NotExist.
	if _, err := d.CreateStory("missing", "S", nil); err != ErrNotExist {
		t.Fatalf("CreateStory() error = %v, want ErrNotExist", err)
	}
}

func TestAcquireDestroyConflictScenario(t *testing.T) {
	d := newTestDirectory()
	if err := d.CreateChronicle("C", nil); err != nil {
		t.Fatalf("CreateChronicle() error = %v", err)
	}
	if _, err := d.CreateStory("C", "S", nil); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}
	if err := d.AcquireStory("X", "C", "S"); err != nil {
		t.Fatalf("AcquireStory() error = %v", err)
	}

	//1.- Destroying a chronicle with an outstanding acquisition must fail.
	if err := d.DestroyChronicle("C"); err != ErrAcquired {
		t.Fatalf("DestroyChronicle() error = %v, want ErrAcquired", err)
	}

	//2.- After release, destruction must succeed.
	if err := d.ReleaseStory("X", "C", "S"); err != nil {
		t.Fatalf("ReleaseStory() error = %v", err)
	}
	if err := d.DestroyChronicle("C"); err != nil {
		t.Fatalf("DestroyChronicle() error = %v, want nil", err)
	}
}

func TestAcquireIsIdempotentForSameClient(t *testing.T) {
	d := newTestDirectory()
	if err := d.CreateChronicle("C", nil); err != nil {
		t.Fatalf("CreateChronicle() error = %v", err)
	}
	sid, err := d.CreateStory("C", "S", nil)
	if err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}

	//1.- Two acquires by the same client must both report success.
	if err := d.AcquireStory("X", "C", "S"); err != nil {
		t.Fatalf("first AcquireStory() error = %v", err)
	}
	if err := d.AcquireStory("X", "C", "S"); err != nil {
		t.Fatalf("second AcquireStory() error = %v, want nil (idempotent)", err)
	}

	//2.- The count must still be 1, and one release brings it to 0.
	if got := d.AcquisitionCount(sid); got != 1 {
		t.Fatalf("AcquisitionCount() = %d, want 1", got)
	}
	if err := d.ReleaseStory("X", "C", "S"); err != nil {
		t.Fatalf("ReleaseStory() error = %v", err)
	}
	if got := d.AcquisitionCount(sid); got != 0 {
		t.Fatalf("AcquisitionCount() after release = %d, want 0", got)
	}
}

func TestReleaseWithoutAcquireFails(t *testing.T) {
	d := newTestDirectory()
	if err := d.CreateChronicle("C", nil); err != nil {
		t.Fatalf("CreateChronicle() error = %v", err)
	}
	if _, err := d.CreateStory("C", "S", nil); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}
	//1.- Releasing without a prior acquire must fail with NotAcquired.
	if err := d.ReleaseStory("X", "C", "S"); err != ErrNotAcquired {
		t.Fatalf("ReleaseStory() error = %v, want ErrNotAcquired", err)
	}
}

func TestDestroyStoryRequiresNoAcquisition(t *testing.T) {
	d := newTestDirectory()
	if err := d.CreateChronicle("C", nil); err != nil {
		t.Fatalf("CreateChronicle() error = %v", err)
	}
	if _, err := d.CreateStory("C", "S", nil); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}
	if err := d.AcquireStory("X", "C", "S"); err != nil {
		t.Fatalf("AcquireStory() error = %v", err)
	}
	//1.- A story still acquired cannot be destroyed.
	if err := d.DestroyStory("C", "S"); err != ErrAcquired {
		t.Fatalf("DestroyStory() error = %v, want ErrAcquired", err)
	}
	if err := d.ReleaseStory("X", "C", "S"); err != nil {
		t.Fatalf("ReleaseStory() error = %v", err)
	}
	if err := d.DestroyStory("C", "S"); err != nil {
		t.Fatalf("DestroyStory() error = %v, want nil", err)
	}
}

func TestEditAndGetChronicleAttr(t *testing.T) {
	d := newTestDirectory()
	if err := d.CreateChronicle("C", nil); err != nil {
		t.Fatalf("CreateChronicle() error = %v", err)
	}
	//1.- An attribute written via Edit must be visible via Get.
	if err := d.EditChronicleAttr("C", "owner", "team-a"); err != nil {
		t.Fatalf("EditChronicleAttr() error = %v", err)
	}
	got, err := d.GetChronicleAttr("C", "owner")
	if err != nil {
		t.Fatalf("GetChronicleAttr() error = %v", err)
	}
	if got != "team-a" {
		t.Fatalf("GetChronicleAttr() = %q, want %q", got, "team-a")
	}
}

func TestShowChroniclesAndStories(t *testing.T) {
	d := newTestDirectory()
	if err := d.CreateChronicle("C", nil); err != nil {
		t.Fatalf("CreateChronicle() error = %v", err)
	}
	if _, err := d.CreateStory("C", "S1", nil); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}
	if _, err := d.CreateStory("C", "S2", nil); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}

	chronicles := d.ShowChronicles()
	if len(chronicles) != 1 || chronicles[0] != "C" {
		t.Fatalf("ShowChronicles() = %v, want [C]", chronicles)
	}

	stories, err := d.ShowStories("C")
	if err != nil {
		t.Fatalf("ShowStories() error = %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("ShowStories() = %v, want 2 entries", stories)
	}
}

func TestStoryIDIsStableAcrossReads(t *testing.T) {
	d := newTestDirectory()
	if err := d.CreateChronicle("C", nil); err != nil {
		t.Fatalf("CreateChronicle() error = %v", err)
	}
	sid, err := d.CreateStory("C", "S", nil)
	if err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}
	//1.- The id handed back at creation must equal the deterministic derivation.
	if sid != StoryID("C", "S") {
		t.Fatalf("CreateStory() sid = %d, want %d", sid, StoryID("C", "S"))
	}
}
