package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mediadrop/db"
	"mediadrop/models"
	"mediadrop/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrProvisionConflict is returned only when a node kept being created and removed
// concurrently for longer than the retry budget allows
var ErrProvisionConflict = errors.New("directory: category node conflict")

const defaultMaxAttempts = 3

// Provisioner resolves contributor (and sub-label) category nodes, creating them on demand.
// Concurrent callers asking for the same node always get the same id: the unique index on
// (tree_id, parent_id, normalized_label) decides the winner and the losers re-read it.
type Provisioner struct {
	db          *gorm.DB
	enabled     bool
	maxAttempts int
	log         *zap.Logger
}

func NewProvisioner(db *gorm.DB, enabled bool, log *zap.Logger) *Provisioner {
	return &Provisioner{
		db:          db,
		enabled:     enabled,
		maxAttempts: defaultMaxAttempts,
		log:         log,
	}
}

func (p *Provisioner) Enabled() bool {
	return p.enabled
}

// NormalizeLabel is the comparison key of labels within one parent
func NormalizeLabel(label string) string {
	return utils.SafeName(strings.TrimSpace(label))
}

// Ensure returns the node for the contributor under the album root, or for the sub-label
// under that one. It returns nil (and no error) when placement is disabled for the album.
func (p *Provisioner) Ensure(ctx context.Context, album *models.Album, contributor, subLabel string) (*uint64, error) {
	if !p.enabled || album.CategoryTree == "" {
		return nil, nil
	}
	var parent uint64
	if album.RootNodeID != nil {
		parent = *album.RootNodeID
	}
	node, err := p.GetOrCreate(ctx, album.CategoryTree, contributor, parent)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(subLabel) != "" {
		if node, err = p.GetOrCreate(ctx, album.CategoryTree, subLabel, node.ID); err != nil {
			return nil, err
		}
	}
	return &node.ID, nil
}

// GetOrCreate finds the node with the given label under parent (0 for top level)
// or creates it
func (p *Provisioner) GetOrCreate(ctx context.Context, tree, label string, parent uint64) (*models.CategoryNode, error) {
	label = strings.TrimSpace(label)
	normalized := NormalizeLabel(label)
	if normalized == "" {
		return nil, errors.New("directory: empty label")
	}
	conn := p.db.WithContext(ctx)
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		node, err := p.find(conn, tree, normalized, parent)
		if err == nil {
			return node, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup %q: %w", label, err)
		}
		node = &models.CategoryNode{
			TreeID:          tree,
			ParentID:        parent,
			NormalizedLabel: normalized,
			Label:           label,
		}
		err = conn.Create(node).Error
		if err == nil {
			p.log.Debug("category node created",
				zap.String("tree", tree), zap.Uint64("parent", parent), zap.String("label", label), zap.Uint64("id", node.ID))
			return node, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create %q: %w", label, err)
		}
		// Someone else created it between our lookup and insert
		p.log.Debug("category node conflict, re-reading",
			zap.String("tree", tree), zap.String("label", label), zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("%q under %d: %w", label, parent, ErrProvisionConflict)
}

func (p *Provisioner) find(tx *gorm.DB, tree, normalized string, parent uint64) (*models.CategoryNode, error) {
	var node models.CategoryNode
	err := tx.Where("tree_id = ? AND parent_id = ? AND normalized_label = ?", tree, parent, normalized).
		Take(&node).Error
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// EnsureAlbumRoot creates the top level node named after the album and stores it as the
// album's root. Albums without a tree, or that already have a root, are left untouched.
func (p *Provisioner) EnsureAlbumRoot(ctx context.Context, album *models.Album) error {
	if !p.enabled || album.CategoryTree == "" || album.RootNodeID != nil {
		return nil
	}
	node, err := p.GetOrCreate(ctx, album.CategoryTree, album.Name, 0)
	if err != nil {
		return err
	}
	album.RootNodeID = &node.ID
	if album.ID == 0 {
		return nil
	}
	return p.db.WithContext(ctx).Model(album).Update("root_node_id", node.ID).Error
}

// CleanupEmpty deletes leaf nodes of tree that no media is placed in and that are not an
// album root. It repeats until nothing is left to remove, so emptied parents go too.
func (p *Provisioner) CleanupEmpty(ctx context.Context, tree string) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		result := p.db.WithContext(ctx).
			Where("tree_id = ?", tree).
			Where("id NOT IN (?)", p.db.Model(&models.CategoryNode{}).Select("parent_id").Where("tree_id = ?", tree)).
			Where("id NOT IN (?)", p.db.Model(&models.Media{}).Select("category_node_id").Where("category_node_id IS NOT NULL")).
			Where("id NOT IN (?)", p.db.Model(&models.Album{}).Select("root_node_id").Where("root_node_id IS NOT NULL")).
			Delete(&models.CategoryNode{})
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
		if result.RowsAffected == 0 {
			break
		}
	}
	if total > 0 {
		p.log.Info("empty category nodes removed", zap.String("tree", tree), zap.Int64("count", total))
	}
	return total, nil
}
