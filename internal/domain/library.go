package domain

// Article is a learning card in the library view.
type Article struct {
	Title    string `json:"title"`
	Tag      string `json:"tag"`
	ImageURL string `json:"imageUrl"`
}

// Library is the static reading list.
var Library = []Article{
	{Title: "Dermal Barrier Integrity", Tag: "Physiology", ImageURL: "https://picsum.photos/seed/skin1/400/200"},
	{Title: "Retinoid Synergies", Tag: "Active Compounds", ImageURL: "https://picsum.photos/seed/skin2/400/200"},
	{Title: "Photo-aging Pathways", Tag: "UV Protection", ImageURL: "https://picsum.photos/seed/skin3/400/200"},
	{Title: "Psychodermatology: Stress & Glow", Tag: "Neurological", ImageURL: "https://picsum.photos/seed/skin4/400/200"},
}
