package gambit

import "github.com/bolt-foundry/gambit/permission"

// PermissionLayers is the raw, unnormalized input to resolveEffectivePermissions
// for a root deck: the four layers spec.md §4.2 folds left to right. Host
// left as a zero Declaration resolves to "all" for every kind, matching the
// "host is implicitly all for unspecified kinds" rule.
type PermissionLayers struct {
	Host        permission.Declaration
	Workspace   permission.Declaration
	Declaration permission.Declaration
	Session     permission.Declaration
}

// ResolveEffectivePermissions implements spec.md §6's
// `resolveEffectivePermissions(layers) -> {effective, trace}` for a root
// deck invocation.
func ResolveEffectivePermissions(layers PermissionLayers) (permission.Resolution, error) {
	host, err := permission.Normalize("host", defaultAllDeclaration(layers.Host))
	if err != nil {
		return permission.Resolution{}, err
	}
	workspace, err := permission.Normalize("workspace", layers.Workspace)
	if err != nil {
		return permission.Resolution{}, err
	}
	declaration, err := permission.Normalize("declaration", layers.Declaration)
	if err != nil {
		return permission.Resolution{}, err
	}
	session, err := permission.Normalize("session", layers.Session)
	if err != nil {
		return permission.Resolution{}, err
	}
	return permission.ResolveRoot(host, workspace, declaration, session), nil
}

// ChildPermissionLayers is the raw input to resolving a nested spawn's
// effective permissions: the parent's already-resolved set, the child
// deck's own declared permissions, and the reference layer — the parent
// action's narrowing of what it grants this specific child (spec.md §4.2).
type ChildPermissionLayers struct {
	Parent      permission.Set
	Declaration permission.Declaration
	Reference   permission.Declaration
}

// ResolveChildPermissions folds a nested spawn's permission layers.
func ResolveChildPermissions(layers ChildPermissionLayers) (permission.Resolution, error) {
	declaration, err := permission.Normalize("declaration", layers.Declaration)
	if err != nil {
		return permission.Resolution{}, err
	}
	reference, err := permission.Normalize("reference", layers.Reference)
	if err != nil {
		return permission.Resolution{}, err
	}
	return permission.ResolveChild(layers.Parent, declaration, reference), nil
}

// defaultAllDeclaration widens every unset kind on d to "all", used only for
// the host layer (spec.md §4.2: host is implicitly all for unspecified
// kinds — every other layer defaults unset kinds to none via
// permission.Normalize).
func defaultAllDeclaration(d permission.Declaration) permission.Declaration {
	if d.Read == nil {
		d.Read = true
	}
	if d.Write == nil {
		d.Write = true
	}
	if d.Run == nil {
		d.Run = true
	}
	if d.Net == nil {
		d.Net = true
	}
	if d.Env == nil {
		d.Env = true
	}
	return d
}
