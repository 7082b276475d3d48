package models

const (
	// GridSize is the side length of the square grid.
	GridSize = 10
	// GridCells is the number of addressable cells; coordinates run 1..GridCells.
	GridCells = GridSize * GridSize
)

var palette = [...]string{
	"#FF0000", "#00FF00", "#0000FF", "#FFFF00",
	"#FF00FF", "#00FFFF", "#800000", "#008000",
	"#000080", "#808000", "#800080", "#008080",
	"#C0C0C0", "#808080", "#FFA500", "#A52A2A",
}

// Palette returns a fresh copy of the selectable colors.
func Palette() []string {
	out := make([]string, len(palette))
	copy(out, palette[:])
	return out
}

func IsPaletteColor(color string) bool {
	for _, c := range palette {
		if c == color {
			return true
		}
	}
	return false
}

// ValidCoord reports whether coord addresses a grid cell.
func ValidCoord(coord int) bool {
	return coord >= 1 && coord <= GridCells
}
