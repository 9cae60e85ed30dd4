//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// The demo fixture is a six-peak positive-mode peaklist: paracetamol and
// glucose each seen as an [M+H]+/[M+Na]+ pair, a 13C isotopologue of the
// paracetamol [M+H]+ peak, and paracetamol sulfate matched by the
// drug-product candidates.
const (
	demoDir        = "demo"
	demoPeaklist   = demoDir + "/peaklist.txt"
	demoFormulae   = demoDir + "/formulae.txt"
	demoCompounds  = demoDir + "/compounds.txt"
	demoCandidates = demoDir + "/candidates.yaml"
	demoResults    = demoDir + "/results.db"
	demoSummary    = demoDir + "/summary.txt"
)

var demoFiles = map[string]string{
	demoPeaklist: `name	mz	rt	intensity
M152T42	152.0706	42.3	1250000.0
M153T42	153.0740	42.3	85200.0
M174T42	174.0525	42.5	340500.0
M181T60	181.0707	60.2	910000.0
M203T60	203.0526	60.4	187300.0
M232T35	232.0274	35.1	52600.0
`,
	demoFormulae: `exact_mass	C	H	N	O	P	S	HC	NOPSC	lewis	senior	double_bond_equivalents
151.063329	8	9	1	2	0	0	1	1	1	1	5.0
180.063388	6	12	0	6	0	0	1	1	1	1	1.0
231.020143	8	9	1	5	0	1	1	1	1	1	5.0
`,
	demoCompounds: `compound_id	compound_name	exact_mass	molecular_formula
HMDB0000122	D-Glucose	180.063388	C6H12O6
HMDB0001859	Acetaminophen	151.063329	C8H9NO2
HMDB0059911	Acetaminophen sulfate	231.020143	C8H9NO5S
`,
	demoCandidates: `- smiles: CC(=O)Nc1ccc(O)cc1
  molecular_formula: C8H9NO2
  sygma_score: 1.0
  sygma_pathway: parent
  parent: CC(=O)Nc1ccc(O)cc1
- smiles: CC(=O)Nc1ccc(OS(=O)(=O)O)cc1
  molecular_formula: C8H9NO5S
  sygma_score: 0.21
  sygma_pathway: sulfation (aromatic hydroxyl)
  parent: CC(=O)Nc1ccc(O)cc1
`,
}

// demoInputs writes the demo fixture files that are not already present.
func demoInputs() error {
	if err := os.MkdirAll(demoDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", demoDir, err)
	}
	for path, content := range demoFiles {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// runBin runs the built CLI with the given arguments.
func runBin(args ...string) error {
	cmd := exec.Command(filepath.Join(binDir, binName), args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", binName, args[0], err)
	}
	return nil
}

// Demo runs every annotation stage on a fresh copy of the demo fixture
// and prints the resulting summary.
func Demo() error {
	if err := os.RemoveAll(demoDir); err != nil {
		return fmt.Errorf("clearing %s: %w", demoDir, err)
	}
	mg.SerialDeps(Patterns, Formulae, Compounds, DrugProducts, Summary)
	return nil
}
