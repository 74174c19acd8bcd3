package testsupport

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

type param struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed,omitempty"`
}

type entry struct {
	Type            string  `json:"type"`
	Name            string  `json:"name"`
	Inputs          []param `json:"inputs"`
	Outputs         []param `json:"outputs,omitempty"`
	StateMutability string  `json:"stateMutability,omitempty"`
	Anonymous       bool    `json:"anonymous,omitempty"`
}

func p(name, typ string) param { return param{Name: name, Type: typ} }

func indexed(name, typ string) param { return param{Name: name, Type: typ, Indexed: true} }

func view(name string, in []param, out ...param) entry {
	return entry{Type: "function", Name: name, Inputs: in, Outputs: out, StateMutability: "view"}
}

func send(name string, in []param, out ...param) entry {
	return entry{Type: "function", Name: name, Inputs: in, Outputs: out, StateMutability: "nonpayable"}
}

func event(name string, in ...param) entry {
	return entry{Type: "event", Name: name, Inputs: in}
}

var proposal = []param{p("proposalId", "uint256")}

var descriptors = map[string][]entry{
	"Governance": {
		view("name", nil, p("", "string")),
		view("version", nil, p("", "uint32")),
		view("getStorageAddress", nil, p("", "address")),
		send("propose", nil, p("", "uint256")),
		send("configure", []param{p("proposalId", "uint256"), p("quorumRequired", "uint256"), p("requiredDuration", "uint256")}),
		send("attachTransaction", []param{
			p("proposalId", "uint256"), p("target", "address"), p("value", "uint256"),
			p("signature", "string"), p("_calldata", "bytes"), p("scheduleTime", "uint256"),
		}, p("", "uint256")),
		event("ProposalCreated", indexed("sender", "address"), p("proposalId", "uint256")),
	},
	"VoteStrategy": {
		send("openVote", proposal),
		view("isOpen", proposal, p("", "bool")),
		send("endVote", proposal),
		send("cancel", proposal),
		send("voteFor", proposal),
		send("voteFor", []param{p("proposalId", "uint256"), p("tokenId", "uint256")}),
		send("voteAgainst", proposal),
		send("voteAgainstWithTokenId", []param{p("proposalId", "uint256"), p("tokenId", "uint256")}),
		send("abstainFromVote", proposal),
		send("abstainWithTokenId", []param{p("proposalId", "uint256"), p("tokenId", "uint256")}),
		view("getVoteSucceeded", proposal, p("", "bool")),
		event("VoteOpen", indexed("proposalId", "uint256")),
		event("VoteClosed", indexed("proposalId", "uint256")),
	},
	"Storage": {
		view("name", nil, p("", "string")),
		view("version", nil, p("", "uint32")),
		view("quorumRequired", proposal, p("", "uint256")),
		view("voteDuration", proposal, p("", "uint256")),
		view("startBlock", proposal, p("", "uint256")),
		view("endBlock", proposal, p("", "uint256")),
	},
	"GovernanceBuilder": {
		view("name", nil, p("", "string")),
		send("aGovernance", nil),
		send("withName", []param{p("name", "bytes32")}),
		send("withUrl", []param{p("url", "string")}),
		send("withDescription", []param{p("description", "string")}),
		send("withSupervisor", []param{p("supervisor", "address")}),
		send("withVoterClassAddress", []param{p("voterClass", "address")}),
		send("withMinimumDuration", []param{p("duration", "uint256")}),
		send("build", nil, p("", "address")),
		event("GovernanceContractCreated", indexed("creator", "address"), p("name", "bytes32"), p("governance", "address")),
	},
	"TreasuryBuilder": {
		view("name", nil, p("", "string")),
		send("aTreasury", nil),
		send("withMinimumApprovalRequirement", []param{p("minimum", "uint256")}),
		send("withTimeLockDelay", []param{p("delay", "uint256")}),
		send("withApprover", []param{p("approver", "address")}),
		send("build", nil, p("", "address")),
		event("TreasuryCreated", indexed("creator", "address"), p("treasury", "address")),
	},
	"VoterClassFactory": {
		send("createERC721", []param{p("project", "address"), p("weight", "uint256")}, p("", "address")),
		event("VoterClassCreated", indexed("voterClass", "address"), indexed("project", "address")),
	},
	"System": {
		send("create", []param{
			p("name", "bytes32"), p("url", "string"), p("description", "string"),
			p("erc721", "address"), p("quorum", "uint256"),
		}, p("", "address")),
		event("GovernanceContractCreated",
			indexed("creator", "address"), p("name", "bytes32"),
			p("_storage", "address"), p("metaStorage", "address"), p("governance", "address")),
	},
}

// DescriptorNames lists every descriptor WriteDescriptors produces.
func DescriptorNames() []string {
	return []string{"Governance", "VoteStrategy", "Storage", "GovernanceBuilder", "TreasuryBuilder", "VoterClassFactory", "System"}
}

// DescriptorJSON returns the interface document for name.
func DescriptorJSON(t testing.TB, name string) []byte {
	t.Helper()
	entries, ok := descriptors[name]
	if !ok {
		t.Fatalf("unknown descriptor %s", name)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal descriptor %s: %v", name, err)
	}
	return data
}

// MustABI parses the named test descriptor.
func MustABI(t testing.TB, name string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(bytes.NewReader(DescriptorJSON(t, name)))
	if err != nil {
		t.Fatalf("parse descriptor %s: %v", name, err)
	}
	return parsed
}

// WriteDescriptors writes every test descriptor to dir as <name>.json. The
// Governance descriptor is wrapped in a build artifact to exercise both layouts.
func WriteDescriptors(t testing.TB, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for _, name := range DescriptorNames() {
		data := DescriptorJSON(t, name)
		if name == "Governance" {
			wrapped, err := json.Marshal(map[string]any{
				"contractName": name,
				"abi":          json.RawMessage(data),
			})
			if err != nil {
				t.Fatalf("marshal artifact %s: %v", name, err)
			}
			data = wrapped
		}
		if err := os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644); err != nil {
			t.Fatalf("write descriptor %s: %v", name, err)
		}
	}
}
