package filetree_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/builddeck/internal/domain"
	"github.com/waabox/builddeck/internal/filetree"
)

func artifacts(paths ...string) []domain.Artifact {
	out := make([]domain.Artifact, len(paths))
	for i, p := range paths {
		out[i] = domain.Artifact{RelativePath: p}
	}
	return out
}

func names(nodes []*filetree.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestBuild_ContractScenario(t *testing.T) {
	roots, conflicts := filetree.Build(artifacts(
		"contracts/Token.sol",
		"contracts/deploy/Deploy.s.sol",
		"audit-report.md",
	))
	require.Empty(t, conflicts)
	require.Len(t, roots, 2)

	contracts := roots[0]
	assert.Equal(t, "contracts", contracts.Name)
	assert.Equal(t, filetree.TypeFolder, contracts.Type)
	require.Len(t, contracts.Children, 2)
	assert.Equal(t, "Token.sol", contracts.Children[0].Name)
	assert.Equal(t, filetree.TypeFile, contracts.Children[0].Type)

	deploy := contracts.Children[1]
	assert.Equal(t, "deploy", deploy.Name)
	assert.True(t, deploy.IsFolder())
	require.Len(t, deploy.Children, 1)
	assert.Equal(t, "contracts/deploy/Deploy.s.sol", deploy.Children[0].Path)

	assert.Equal(t, "audit-report.md", roots[1].Name)
	assert.Equal(t, filetree.TypeFile, roots[1].Type)
}

func TestBuild_SiblingsFollowInputOrder(t *testing.T) {
	first, _ := filetree.Build(artifacts("a/b", "a/c"))
	second, _ := filetree.Build(artifacts("a/c", "a/b"))

	assert.Equal(t, []string{"b", "c"}, names(first[0].Children))
	assert.Equal(t, []string{"c", "b"}, names(second[0].Children))
}

func TestBuild_LeavesReconstructInputPaths(t *testing.T) {
	input := []string{
		"src/lib/Math.sol",
		"README.md",
		"src/Token.sol",
		"script/Deploy.s.sol",
		"src/lib/Strings.sol",
	}
	roots, conflicts := filetree.Build(artifacts(input...))
	require.Empty(t, conflicts)

	leaves := filetree.Leaves(roots)
	sort.Strings(leaves)
	want := append([]string(nil), input...)
	sort.Strings(want)
	assert.Equal(t, want, leaves)
}

func TestBuild_DiscardsEmptySegments(t *testing.T) {
	roots, conflicts := filetree.Build(artifacts("/contracts//Token.sol/", ""))
	require.Len(t, conflicts, 1)
	assert.Equal(t, "empty path", conflicts[0].Reason)
	assert.Equal(t, []string{"contracts/Token.sol"}, filetree.Leaves(roots))
}

func TestBuild_FolderWinsOverLaterFile(t *testing.T) {
	roots, conflicts := filetree.Build(artifacts("a/b", "a"))
	require.Len(t, conflicts, 1)
	assert.Equal(t, "a", conflicts[0].Path)
	require.Len(t, roots, 1)
	assert.True(t, roots[0].IsFolder())
	assert.Equal(t, []string{"a/b"}, filetree.Leaves(roots))
}

func TestBuild_FolderWinsOverEarlierFile(t *testing.T) {
	roots, conflicts := filetree.Build(artifacts("a", "a/b"))
	require.Len(t, conflicts, 1)
	assert.Equal(t, "a", conflicts[0].Path)
	require.Len(t, roots, 1)
	assert.True(t, roots[0].IsFolder())
	assert.Equal(t, []string{"a/b"}, filetree.Leaves(roots))
}

func TestBuild_DuplicatePathKeptOnce(t *testing.T) {
	roots, conflicts := filetree.Build(artifacts("x/y.sol", "x/y.sol"))
	require.Len(t, conflicts, 1)
	assert.Equal(t, "duplicate path", conflicts[0].Reason)
	assert.Equal(t, []string{"x/y.sol"}, filetree.Leaves(roots))
}

func TestVisible_OnlyExpandsRequestedFolders(t *testing.T) {
	roots, _ := filetree.Build(artifacts("contracts/Token.sol", "contracts/deploy/Deploy.s.sol", "audit-report.md"))

	collapsed := filetree.Visible(roots, nil)
	require.Len(t, collapsed, 2)

	expanded := filetree.Visible(roots, map[string]bool{"contracts": true})
	require.Len(t, expanded, 4)
	assert.Equal(t, 1, expanded[1].Depth)
	assert.Equal(t, "deploy", expanded[2].Node.Name)

	assert.Equal(t, []string{"contracts", "contracts/deploy"}, filetree.Folders(roots))
}
