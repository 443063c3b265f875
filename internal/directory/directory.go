package directory

import (
	"sync"

	"chronolog/internal/logging"
	"chronolog/internal/metrics"
)

// MetaDirectory is the process-wide owner of the chronicles map and the
// acquired-clients multimap. All operations serialize on the directory
// mutex; acquisition-map mutations additionally take the acquisition
// mutex, always acquired after the directory mutex (fixed order: directory
// then acquisition) to avoid deadlock, per spec §5.
//
// A directory has no hidden process-lifetime singleton: tests construct
// isolated instances freely with New.
type MetaDirectory struct {
	mu             sync.Mutex
	chronicles     map[uint64]*Chronicle
	chronicleNames map[string]uint64

	acqMu    sync.Mutex
	acquired map[uint64]map[string]struct{}

	registry *ClientRegistry
	logger   *logging.Logger
	metrics  *metrics.Collector
}

// New constructs an empty MetaDirectory backed by registry for acquisition
// bookkeeping. registry may be nil, in which case acquisitions are
// tracked only within the directory itself.
func New(registry *ClientRegistry, logger *logging.Logger, collector *metrics.Collector) *MetaDirectory {
	if logger == nil {
		logger = logging.L()
	}
	return &MetaDirectory{
		chronicles:     make(map[uint64]*Chronicle),
		chronicleNames: make(map[string]uint64),
		acquired:       make(map[uint64]map[string]struct{}),
		registry:       registry,
		logger:         logger,
		metrics:        collector,
	}
}

// CreateChronicle registers a new chronicle under name.
func (d *MetaDirectory) CreateChronicle(name string, attrs map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.createChronicleLocked(name, attrs)
	d.observe("create_chronicle", err)
	return err
}

func (d *MetaDirectory) createChronicleLocked(name string, attrs map[string]string) error {
	if _, exists := d.chronicleNames[name]; exists {
		return ErrChronicleExists
	}
	cid := ChronicleID(name)
	d.chronicles[cid] = newChronicle(cid, name, attrs)
	d.chronicleNames[name] = cid
	return nil
}

// DestroyChronicle removes a chronicle, failing if any of its stories
// still has an outstanding acquisition.
func (d *MetaDirectory) DestroyChronicle(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.destroyChronicleLocked(name)
	d.observe("destroy_chronicle", err)
	return err
}

func (d *MetaDirectory) destroyChronicleLocked(name string) error {
	cid, ok := d.chronicleNames[name]
	if !ok {
		return ErrNotExist
	}
	chronicle := d.chronicles[cid]

	d.acqMu.Lock()
	for sid := range chronicle.stories {
		if len(d.acquired[sid]) > 0 {
			d.acqMu.Unlock()
			return ErrAcquired
		}
	}
	d.acqMu.Unlock()

	delete(d.chronicles, cid)
	delete(d.chronicleNames, name)
	return nil
}

// CreateStory adds a story to an existing chronicle, returning its
// derived story id.
func (d *MetaDirectory) CreateStory(chronicleName, storyName string, attrs map[string]string) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sid, err := d.createStoryLocked(chronicleName, storyName, attrs)
	d.observe("create_story", err)
	return sid, err
}

func (d *MetaDirectory) createStoryLocked(chronicleName, storyName string, attrs map[string]string) (uint64, error) {
	cid, ok := d.chronicleNames[chronicleName]
	if !ok {
		return 0, ErrNotExist
	}
	story, err := d.chronicles[cid].AddStory(storyName, attrs)
	if err != nil {
		return 0, err
	}
	return story.ID, nil
}

// DestroyStory removes a story, failing if it still has an outstanding
// acquisition.
func (d *MetaDirectory) DestroyStory(chronicleName, storyName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.destroyStoryLocked(chronicleName, storyName)
	d.observe("destroy_story", err)
	return err
}

func (d *MetaDirectory) destroyStoryLocked(chronicleName, storyName string) error {
	cid, ok := d.chronicleNames[chronicleName]
	if !ok {
		return ErrNotExist
	}
	chronicle := d.chronicles[cid]
	sid, ok := chronicle.StoryIDOf(storyName)
	if !ok {
		return ErrNotExist
	}

	d.acqMu.Lock()
	acquired := len(d.acquired[sid]) > 0
	d.acqMu.Unlock()
	if acquired {
		return ErrAcquired
	}

	chronicle.RemoveStory(storyName)
	return nil
}

// AcquireStory records client's interest in storyName, blocking its
// destruction. Repeat acquisitions by the same client are idempotent: the
// call succeeds without incrementing the count a second time. This fixes
// the documented return-code bug in spec §9 where a repeat acquire used to
// overwrite the "already acquired" result with success after the fact —
// here it is success all along, with no double counting either way.
func (d *MetaDirectory) AcquireStory(clientID, chronicleName, storyName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.acquireStoryLocked(clientID, chronicleName, storyName)
	d.observe("acquire_story", err)
	return err
}

func (d *MetaDirectory) acquireStoryLocked(clientID, chronicleName, storyName string) error {
	cid, ok := d.chronicleNames[chronicleName]
	if !ok {
		return ErrNotExist
	}
	sid, ok := d.chronicles[cid].StoryIDOf(storyName)
	if !ok {
		return ErrNotExist
	}

	d.acqMu.Lock()
	defer d.acqMu.Unlock()
	clients, ok := d.acquired[sid]
	if !ok {
		clients = make(map[string]struct{})
		d.acquired[sid] = clients
	}
	if _, already := clients[clientID]; already {
		//1.- Idempotent success: the same client acquiring twice is not an error.
		return nil
	}
	clients[clientID] = struct{}{}
	d.registry.RegisterAcquisition(clientID, sid)
	return nil
}

// ReleaseStory removes client's acquisition of storyName.
func (d *MetaDirectory) ReleaseStory(clientID, chronicleName, storyName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.releaseStoryLocked(clientID, chronicleName, storyName)
	d.observe("release_story", err)
	return err
}

func (d *MetaDirectory) releaseStoryLocked(clientID, chronicleName, storyName string) error {
	cid, ok := d.chronicleNames[chronicleName]
	if !ok {
		return ErrNotExist
	}
	sid, ok := d.chronicles[cid].StoryIDOf(storyName)
	if !ok {
		return ErrNotExist
	}

	d.acqMu.Lock()
	defer d.acqMu.Unlock()
	clients, ok := d.acquired[sid]
	if !ok {
		return ErrNotAcquired
	}
	if _, present := clients[clientID]; !present {
		return ErrNotAcquired
	}
	delete(clients, clientID)
	if len(clients) == 0 {
		delete(d.acquired, sid)
	}
	d.registry.UnregisterAcquisition(clientID, sid)
	return nil
}

// GetChronicleAttr reads an attribute of the named chronicle.
func (d *MetaDirectory) GetChronicleAttr(chronicleName, key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cid, ok := d.chronicleNames[chronicleName]
	if !ok {
		return "", ErrNotExist
	}
	return d.chronicles[cid].Attrs[key], nil
}

// EditChronicleAttr sets an attribute of the named chronicle.
func (d *MetaDirectory) EditChronicleAttr(chronicleName, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cid, ok := d.chronicleNames[chronicleName]
	if !ok {
		return ErrNotExist
	}
	chronicle := d.chronicles[cid]
	if chronicle.Attrs == nil {
		chronicle.Attrs = make(map[string]string)
	}
	chronicle.Attrs[key] = value
	return nil
}

// ShowChronicles returns every registered chronicle name.
func (d *MetaDirectory) ShowChronicles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.chronicleNames))
	for name := range d.chronicleNames {
		names = append(names, name)
	}
	return names
}

// ShowStories returns every story name registered under chronicleName.
func (d *MetaDirectory) ShowStories(chronicleName string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cid, ok := d.chronicleNames[chronicleName]
	if !ok {
		return nil, ErrNotExist
	}
	return d.chronicles[cid].StoryNames(), nil
}

// AcquisitionCount reports how many distinct clients currently hold sid
// acquired. Exposed for tests and operability endpoints.
func (d *MetaDirectory) AcquisitionCount(sid uint64) int {
	d.acqMu.Lock()
	defer d.acqMu.Unlock()
	return len(d.acquired[sid])
}

func (d *MetaDirectory) observe(op string, err error) {
	if d.metrics == nil {
		return
	}
	d.metrics.ObserveDirectoryOp(op, StatusOf(err).String())
}
