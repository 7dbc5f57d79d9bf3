package constants

const (
	// CSVContentType is the content type tag written on CSV bodies built by the plugin.
	CSVContentType = "text/csv;charset=UTF-8"

	// CSVCatalogueKey is the catalogue key the CSV plugin registers under.
	CSVCatalogueKey = "csv"

	// CSVContentTypes lists the MIME types advertised in the catalogue.
	CSVContentTypes = "text/csv;application/csv"

	// CatalogueContentTypesAttribute names the catalogue attribute carrying CSVContentTypes.
	CatalogueContentTypesAttribute = "content-types"

	// DefaultListenHost is the interface the plugin server binds when none is configured.
	DefaultListenHost = "127.0.0.1"
)
