package router

import (
	"strings"
)

// Cluster is a named group of interest keywords.
type Cluster struct {
	Name     string   `yaml:"name" json:"name" validate:"required"`
	Keywords []string `yaml:"keywords" json:"keywords" validate:"required,min=1"`
}

// DefaultClusters is the built-in cluster table. Keywords are lowercase and
// cover both supported languages.
var DefaultClusters = []Cluster{
	{Name: "Music", Keywords: []string{
		"music", "musik", "song", "songs", "lied", "album", "band", "concert", "konzert",
		"synthwave", "jazz", "techno", "rock", "guitar", "gitarre", "piano", "klavier", "drums", "schlagzeug",
	}},
	{Name: "Infrastructure", Keywords: []string{
		"kubernetes", "k8s", "docker", "terraform", "ansible", "server", "homelab",
		"linux", "nginx", "proxmox", "cluster", "deployment", "netzwerk", "network",
	}},
	{Name: "Programming", Keywords: []string{
		"golang", "rust", "python", "typescript", "javascript", "programming", "programmieren",
		"coding", "compiler", "refactoring", "git",
	}},
	{Name: "Fitness", Keywords: []string{
		"running", "laufen", "joggen", "gym", "fitnessstudio", "workout", "training",
		"yoga", "marathon", "cycling", "radfahren", "climbing", "klettern",
	}},
	{Name: "Cooking", Keywords: []string{
		"cooking", "kochen", "baking", "backen", "recipe", "rezept", "sourdough", "sauerteig", "bbq",
	}},
	{Name: "Reading", Keywords: []string{
		"book", "books", "buch", "bücher", "novel", "roman", "reading", "lesen", "scifi", "fantasy",
	}},
	{Name: "Gaming", Keywords: []string{
		"gaming", "videogames", "zocken", "playstation", "xbox", "nintendo", "steam", "boardgames", "brettspiele",
	}},
	{Name: "Travel", Keywords: []string{
		"travel", "reisen", "urlaub", "vacation", "hiking", "wandern", "backpacking", "camping",
	}},
	{Name: "Photography", Keywords: []string{
		"photography", "fotografie", "camera", "kamera", "lens", "objektiv", "darkroom",
	}},
}

// ClusterIndex maps keywords to the cluster they belong to. It is built once
// and never modified afterwards.
type ClusterIndex struct {
	clusters  []Cluster
	byKeyword map[string]string
}

// NewClusterIndex builds the reverse index for clusters. A keyword listed in
// several clusters belongs to the last one.
func NewClusterIndex(clusters []Cluster) *ClusterIndex {
	ix := &ClusterIndex{
		clusters:  clusters,
		byKeyword: make(map[string]string),
	}
	for _, c := range clusters {
		for _, kw := range c.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			ix.byKeyword[kw] = c.Name
		}
	}
	return ix
}

// Clusters returns the clusters the index was built from.
func (ix *ClusterIndex) Clusters() []Cluster {
	return ix.clusters
}

// Lookup returns the cluster keyword belongs to.
func (ix *ClusterIndex) Lookup(keyword string) (string, bool) {
	name, ok := ix.byKeyword[strings.ToLower(strings.TrimSpace(keyword))]
	return name, ok
}

// ClusterHit is a cluster with the keywords that selected it.
type ClusterHit struct {
	Cluster  string
	Keywords []string
}

// Group maps keywords to clusters. Hits are ordered by the first keyword that
// selected each cluster; unknown keywords are ignored.
func (ix *ClusterIndex) Group(keywords []string) []ClusterHit {
	var hits []ClusterHit
	pos := make(map[string]int)
	seen := make(map[string]bool)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if seen[kw] {
			continue
		}
		name, ok := ix.byKeyword[kw]
		if !ok {
			continue
		}
		seen[kw] = true
		i, ok := pos[name]
		if !ok {
			i = len(hits)
			pos[name] = i
			hits = append(hits, ClusterHit{Cluster: name})
		}
		hits[i].Keywords = append(hits[i].Keywords, kw)
	}
	return hits
}
