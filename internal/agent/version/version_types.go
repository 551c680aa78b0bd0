package version

type Info struct {
	Agent        string `json:"agent"`
	AgentVersion string `json:"agent_version"`
	Transport    string `json:"transport"`
	ConfigPath   string `json:"config_path"`
	GoVersion    string `json:"go_version"`
}
