package store

import "path/filepath"

// Dir is the per-user data directory holding every file in spec.md
// §4.9's file set.
type Dir struct {
	Root string
}

func (d Dir) path(name string) string { return filepath.Join(d.Root, name) }

func (d Dir) ServersPath() string      { return d.path("servers.xml") }
func (d Dir) NewsrcPath(id string) string { return d.path("newsrc-" + id) }
func (d Dir) DescriptionsPath() string { return d.path("newsgroups.dsc") }
func (d Dir) PermissionsPath() string  { return d.path("newsgroups.ynm") }
func (d Dir) OverviewPath() string     { return d.path("newsgroups.xov") }
func (d Dir) GroupPath(group string) string {
	return filepath.Join(d.Root, "groups", group)
}
func (d Dir) TasksPath() string   { return d.path("tasks.nzb") }
func (d Dir) PostingPath() string { return d.path("posting.xml") }
func (d Dir) ScorePath() string   { return d.path("Score") }

// MachineSecretPath holds the local key the obfuscating SecretStore
// derives its keystream from (internal/serverreg.MachineSecretStore).
func (d Dir) MachineSecretPath() string { return d.path("machine.key") }

// AdminPasswordPath holds the bcrypt hash gating destructive
// operations in cmd/add-server.
func (d Dir) AdminPasswordPath() string { return d.path("admin.passwd") }
