package dispatcher

// Verb is a sealed tag union over the toolbox's registered verbs plus a
// distinct raw-shell variant. It is not an interface with unexported
// implementations because the switch over it lives entirely inside this
// package; a plain string-backed enum with an exhaustive switch in
// dispatcher.go gives the same "no silent default" guarantee more simply.
type Verb string

const (
	VerbOpenFile           Verb = "open_file"
	VerbCloseFile          Verb = "close_file"
	VerbCreateFile         Verb = "create_file"
	VerbDeleteFile         Verb = "delete_file"
	VerbScrollUp           Verb = "scroll_up"
	VerbScrollDown         Verb = "scroll_down"
	VerbScrollToLine       Verb = "scroll_to_line"
	VerbSearchDir          Verb = "search_dir"
	VerbSearchFile         Verb = "search_file"
	VerbFindFile           Verb = "find_file"
	VerbFindFunction       Verb = "find_function"
	VerbFindClass          Verb = "find_class"
	VerbListDirsRecursive  Verb = "list_dirs_recursive"
	VerbGetCWD             Verb = "get_cwd"
	VerbEditFile           Verb = "edit_file"
	VerbSubmit             Verb = "submit"
	VerbNoOp               Verb = "no_op"

	// VerbRawShell is a distinct variant, not a default branch: it is
	// reached only when a verb doesn't match the registered toolbox, and
	// is itself rejected for a short blocklist of interactive commands.
	VerbRawShell Verb = "__raw_shell__"
)

var registeredVerbs = map[string]Verb{
	string(VerbOpenFile):          VerbOpenFile,
	string(VerbCloseFile):         VerbCloseFile,
	string(VerbCreateFile):        VerbCreateFile,
	string(VerbDeleteFile):        VerbDeleteFile,
	string(VerbScrollUp):          VerbScrollUp,
	string(VerbScrollDown):        VerbScrollDown,
	string(VerbScrollToLine):      VerbScrollToLine,
	string(VerbSearchDir):         VerbSearchDir,
	string(VerbSearchFile):        VerbSearchFile,
	string(VerbFindFile):          VerbFindFile,
	string(VerbFindFunction):      VerbFindFunction,
	string(VerbFindClass):         VerbFindClass,
	string(VerbListDirsRecursive): VerbListDirsRecursive,
	string(VerbGetCWD):            VerbGetCWD,
	string(VerbEditFile):          VerbEditFile,
	string(VerbSubmit):            VerbSubmit,
	string(VerbNoOp):              VerbNoOp,
}

// Action is one parsed action line.
type Action struct {
	Verb Verb
	Args []string
	Raw  string
}

// Parse tokenizes line and classifies its verb.
func Parse(line string) (Action, error) {
	words, err := Tokenize(line)
	if err != nil {
		return Action{}, err
	}
	if len(words) == 0 {
		return Action{Verb: VerbNoOp, Raw: line}, nil
	}

	if v, ok := registeredVerbs[words[0]]; ok {
		return Action{Verb: v, Args: words[1:], Raw: line}, nil
	}
	return Action{Verb: VerbRawShell, Args: words, Raw: line}, nil
}
