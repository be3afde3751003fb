package voices

import "fmt"

// Language groups the voices RHVoice ships for one language tag.
type Language struct {
	Tag    string
	Voices []string
}

// Catalog is an immutable language/voice table with a voice -> language index.
type Catalog struct {
	languages []Language
	byTag     map[string]int
	byVoice   map[string]string
	all       []string
}

var rhvoiceLanguages = []Language{
	{Tag: "en-US", Voices: []string{"alan", "bdl", "clb", "evgeniy-eng", "slt"}},
	{Tag: "eo", Voices: []string{"spomenka"}},
	{Tag: "ka-GE", Voices: []string{"natia"}},
	{Tag: "ky-KG", Voices: []string{"azamat", "nazgul"}},
	{Tag: "mk", Voices: []string{"kiko"}},
	{Tag: "pl-PL", Voices: []string{"natan", "michal", "cezary", "magda", "alicja"}},
	{Tag: "pt-BR", Voices: []string{"letícia-f123"}},
	{Tag: "ru-RU", Voices: []string{
		"aleksandr", "anna", "arina", "artemiy", "elena",
		"evgeniy-rus", "irina", "pavel", "yuriy", "victoria",
	}},
	{Tag: "tt-RU", Voices: []string{"talgat"}},
	{Tag: "uk-UA", Voices: []string{"anatol", "natalia", "volodymyr"}},
}

var defaultCatalog = mustNew(rhvoiceLanguages)

// Default returns the catalog of voices bundled with RHVoice.
func Default() *Catalog { return defaultCatalog }

// New builds a catalog from the given table. Voice ids must be unique across
// all languages.
func New(table []Language) (*Catalog, error) {
	c := &Catalog{
		languages: make([]Language, 0, len(table)),
		byTag:     make(map[string]int, len(table)),
		byVoice:   make(map[string]string),
	}
	for _, lang := range table {
		if lang.Tag == "" {
			return nil, fmt.Errorf("language tag must not be empty")
		}
		if _, dup := c.byTag[lang.Tag]; dup {
			return nil, fmt.Errorf("duplicate language %q", lang.Tag)
		}
		voices := append([]string(nil), lang.Voices...)
		for _, voice := range voices {
			if owner, dup := c.byVoice[voice]; dup {
				return nil, fmt.Errorf("voice %q listed under both %s and %s", voice, owner, lang.Tag)
			}
			c.byVoice[voice] = lang.Tag
			c.all = append(c.all, voice)
		}
		c.byTag[lang.Tag] = len(c.languages)
		c.languages = append(c.languages, Language{Tag: lang.Tag, Voices: voices})
	}
	return c, nil
}

func mustNew(table []Language) *Catalog {
	c, err := New(table)
	if err != nil {
		panic(err)
	}
	return c
}

// Languages returns the language tags in table order.
func (c *Catalog) Languages() []string {
	tags := make([]string, 0, len(c.languages))
	for _, lang := range c.languages {
		tags = append(tags, lang.Tag)
	}
	return tags
}

// Voices returns the voices of a language, or nil for an unknown tag.
func (c *Catalog) Voices(tag string) []string {
	idx, ok := c.byTag[tag]
	if !ok {
		return nil
	}
	return append([]string(nil), c.languages[idx].Voices...)
}

// AllVoices returns every voice across all languages.
func (c *Catalog) AllVoices() []string {
	return append([]string(nil), c.all...)
}

func (c *Catalog) HasVoice(voice string) bool {
	_, ok := c.byVoice[voice]
	return ok
}

// LanguageOf reports the language a voice belongs to.
func (c *Catalog) LanguageOf(voice string) (string, bool) {
	tag, ok := c.byVoice[voice]
	return tag, ok
}

// Entries returns a copy of the whole table.
func (c *Catalog) Entries() []Language {
	out := make([]Language, 0, len(c.languages))
	for _, lang := range c.languages {
		out = append(out, Language{Tag: lang.Tag, Voices: append([]string(nil), lang.Voices...)})
	}
	return out
}
