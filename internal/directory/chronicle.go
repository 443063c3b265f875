package directory

// Chronicle owns a set of stories and enforces that story names are unique
// within it. All mutating methods assume the caller already holds
// MetaDirectory's directory mutex; Chronicle has no locking of its own.
type Chronicle struct {
	ID         uint64
	Name       string
	Attrs      map[string]string
	stories    map[uint64]*Story
	storyNames map[string]uint64
}

func newChronicle(id uint64, name string, attrs map[string]string) *Chronicle {
	return &Chronicle{
		ID:         id,
		Name:       name,
		Attrs:      cloneAttrs(attrs),
		stories:    make(map[uint64]*Story),
		storyNames: make(map[string]uint64),
	}
}

// AddStory derives a story id from (chronicle name, story name) and
// registers a new Story, rejecting a name already present in this
// chronicle.
func (c *Chronicle) AddStory(name string, attrs map[string]string) (*Story, error) {
	if _, exists := c.storyNames[name]; exists {
		return nil, ErrStoryExists
	}
	sid := StoryID(c.Name, name)
	story := newStory(sid, name, c.ID, attrs)
	c.stories[sid] = story
	c.storyNames[name] = sid
	return story, nil
}

// RemoveStory deletes the named story from this chronicle's bookkeeping.
// The caller is responsible for verifying the story has no outstanding
// acquisitions before calling this.
func (c *Chronicle) RemoveStory(name string) {
	sid, ok := c.storyNames[name]
	if !ok {
		return
	}
	delete(c.stories, sid)
	delete(c.storyNames, name)
}

// StoryIDOf returns the story id registered under name, if any.
func (c *Chronicle) StoryIDOf(name string) (uint64, bool) {
	sid, ok := c.storyNames[name]
	return sid, ok
}

// Story returns the story registered under sid, if any.
func (c *Chronicle) Story(sid uint64) (*Story, bool) {
	s, ok := c.stories[sid]
	return s, ok
}

// StoryNames returns a snapshot of every story name registered in this
// chronicle.
func (c *Chronicle) StoryNames() []string {
	names := make([]string, 0, len(c.storyNames))
	for name := range c.storyNames {
		names = append(names, name)
	}
	return names
}
