package file

const (
	ManifestName   = "MANIFEST"
	ReManifestName = "MANIFEST-REWRITE"

	// MagicVersion bumps whenever the manifest or table layout changes.
	MagicVersion = 1

	// Rewrite the manifest once deletes dominate live entries.
	RewriteThreshold = 1000
	RewriteRatio     = 10
)

var MagicText = [4]byte{'F', 'L', 'D', 'B'}

type Options struct {
	FID      uint64
	FilePath string
	Dir      string
	Flag     int
	MaxSize  int
}
