package simhost

import (
	"fmt"

	"github.com/roach88/mpcompat/internal/host"
)

// Foreign type names exposed by the reference host.
const (
	TypePawn            = "Verse.Pawn"
	TypeCompAbilities   = "VFECore.Abilities.CompAbilities"
	TypeAbility         = "VFECore.Abilities.Ability"
	TypeVerbManager     = "MVCF.VerbManager"
	TypeManagedVerb     = "MVCF.ManagedVerb"
	TypePod             = "VFEAncients.CompGeneTailoringPod"
	TypeOperation       = "VFEAncients.Operation"
	TypeHireDialog      = "VFECore.Misc.Dialog_Hire"
	TypeChoosePowers    = "VFEAncients.Dialog_ChoosePowers"
	TypeMVCFWorldComp   = "MVCF.WorldComponent_MVCF"
	TypeWindowStack     = "Verse.WindowStack"
	TypeThingWithComps  = "Verse.ThingWithComps"
	TypeThing           = "Verse.Thing"
	TypeWindow          = "Verse.Window"
	TypeHireData        = "VFECore.Misc.HireData"
	SiteButtonText      = "Verse.Widgets:ButtonText"
	ChoosePowersContent = "VFEAncients.Dialog_ChoosePowers:DoWindowContents"
	HireDialogContent   = "VFECore.Misc.Dialog_Hire:DoWindowContents"

	// Pod gizmos. Cancel and the debug failure are plain closures of
	// CompGetGizmosExtra. Each operation menu option is a delegate capturing
	// its pod and kind.
	PodCancelGizmo  = "VFEAncients.CompGeneTailoringPod:CompGetGizmosExtra/lambda:8"
	PodDevFailGizmo = "VFEAncients.CompGeneTailoringPod:CompGetGizmosExtra/lambda:9"
	TypePodChoice   = "VFEAncients.CompGeneTailoringPod/CompGetGizmosExtra#1"
	PodChoiceInvoke = TypePodChoice + ":Invoke"
)

// Pawn is a simulated colonist. Pawns are entities.
type Pawn struct {
	ID       host.EntityID
	Name     string
	Weapons  []string
	Power    string
	Weakness string
	Spawned  bool

	abilities *CompAbilities
}

func (p *Pawn) EntityID() host.EntityID { return p.ID }
func (p *Pawn) TypeName() string        { return TypePawn }
func (p *Pawn) String() string          { return fmt.Sprintf("%s#%d", p.Name, p.ID) }

// Abilities returns the pawn's ability comp, creating it on first use.
func (p *Pawn) Abilities() *CompAbilities {
	if p.abilities == nil {
		p.abilities = &CompAbilities{pawn: p}
	}
	return p.abilities
}

// CompAbilities holds the abilities a pawn has learned.
type CompAbilities struct {
	pawn    *Pawn
	Learned []*Ability
}

func (c *CompAbilities) TypeName() string { return TypeCompAbilities }

// Pawn returns the owning pawn.
func (c *CompAbilities) Pawn() *Pawn { return c.pawn }

// Give learns an ability. Learning a known def again is a no-op.
func (c *CompAbilities) Give(def string) *Ability {
	for _, a := range c.Learned {
		if a.Def == def {
			return a
		}
	}
	a := &Ability{Holder: c.pawn, Def: def}
	c.Learned = append(c.Learned, a)
	return a
}

// Find returns the learned ability with def.
func (c *CompAbilities) Find(def string) *Ability {
	for _, a := range c.Learned {
		if a.Def == def {
			return a
		}
	}
	return nil
}

// Ability is one learned ability of a pawn.
type Ability struct {
	Holder      *Pawn
	Def         string
	AutoCast    bool
	Casts       int
	LastTarget  *Pawn
	Initialized bool
}

func (a *Ability) TypeName() string { return TypeAbility }

// UniqueLoadID identifies the ability among its holder's abilities.
func (a *Ability) UniqueLoadID() string {
	return fmt.Sprintf("Ability_%s_%d", a.Def, a.Holder.ID)
}

// VerbManager tracks the managed verbs of one pawn. A manager created but not
// yet initialized has no pawn and no verbs.
type VerbManager struct {
	Pawn  *Pawn
	Verbs []*ManagedVerb
}

func (m *VerbManager) TypeName() string { return TypeVerbManager }

// Initialize binds the manager to p and builds one verb per weapon.
func (m *VerbManager) Initialize(p *Pawn) {
	m.Pawn = p
	m.Verbs = m.Verbs[:0]
	for _, w := range p.Weapons {
		m.Verbs = append(m.Verbs, &ManagedVerb{Manager: m, Label: w, Enabled: true})
	}
}

// ManagedVerb is one attack verb a manager controls.
type ManagedVerb struct {
	Manager *VerbManager
	Label   string
	Enabled bool
}

func (v *ManagedVerb) TypeName() string { return TypeManagedVerb }

// Pod is a gene tailoring pod. Pods are entities.
type Pod struct {
	ID        host.EntityID
	Current   *Operation
	Completed []string
	Cancelled []string
	Failed    []string
}

func (p *Pod) EntityID() host.EntityID { return p.ID }
func (p *Pod) TypeName() string        { return TypePod }

// Operation is a tailoring operation bound to a pod.
type Operation struct {
	Pod  *Pod
	Kind string
}

func (o *Operation) TypeName() string { return TypeOperation }

// PodChoice is the state captured by one option of the operation menu.
type PodChoice struct {
	Pod  *Pod
	Kind string
}

func (c *PodChoice) TypeName() string { return TypePodChoice }

// Gizmo is a command button shown for a selected object.
type Gizmo struct {
	Label  string
	Action func() error
}

// window is anything the window stack can hold.
type window interface {
	host.Typed
	isOpen() bool
	close()
}

// HireDialog lets the player hire pawns from a faction for some days.
type HireDialog struct {
	DaysAmount int
	CurFaction string
	HireData   map[string]int
	open       bool
}

func (d *HireDialog) TypeName() string { return TypeHireDialog }
func (d *HireDialog) isOpen() bool     { return d.open }
func (d *HireDialog) close()           { d.open = false }

// Open reports whether the dialog is still on the window stack.
func (d *HireDialog) Open() bool { return d.open }

// PowerOption is one power/weakness pair offered by ChoosePowersDialog.
type PowerOption struct {
	Power    string
	Weakness string
}

// ChoosePowersDialog offers a pawn a choice of power/weakness pairs.
type ChoosePowersDialog struct {
	Pawn    *Pawn
	Options []PowerOption
	open    bool
}

func (d *ChoosePowersDialog) TypeName() string { return TypeChoosePowers }
func (d *ChoosePowersDialog) isOpen() bool     { return d.open }
func (d *ChoosePowersDialog) close()           { d.open = false }

// Open reports whether the dialog is still on the window stack.
func (d *ChoosePowersDialog) Open() bool { return d.open }

// onChosen grants the chosen pair to the pawn.
func (d *ChoosePowersDialog) onChosen(power, weakness string) {
	d.Pawn.Power = power
	d.Pawn.Weakness = weakness
}

// Contract is a completed hire.
type Contract struct {
	Faction  string
	Days     int
	HireData map[string]int
}
