package meta

const (
	// ProtocolVersion is the diag wire protocol spoken by server and client.
	ProtocolVersion = 1
)

// Following variables are filled in by the build
var (
	Version   string
	GitCommit string
	BuildDate string
)

type VersionOutput struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`

	ProtocolVersion int `json:"protocolVersion"`
}

func GetVersion() *VersionOutput {
	return &VersionOutput{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,

		ProtocolVersion: ProtocolVersion,
	}
}
