package process

import (
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv reads a dotenv file into an environment for Command.Env.
func LoadEnv(paths ...string) (map[string]string, error) {
	return godotenv.Read(paths...)
}

// EnvFromPairs builds an environment from KEY=VALUE strings such as
// os.Environ(). Later keys win; entries without '=' are ignored.
func EnvFromPairs(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// envList renders env for exec.Cmd. A nil map yields nil so the child
// inherits; an empty map yields an empty, non-nil list.
func envList(env map[string]string) []string {
	if env == nil {
		return nil
	}
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}
